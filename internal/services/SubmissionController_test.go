package services

import (
	"context"
	"errors"
	"freedomwall/internal/docstore"
	"freedomwall/internal/identity"
	"freedomwall/internal/layout"
	"freedomwall/internal/models"
	"freedomwall/internal/testutil"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand struct{}

func (fixedRand) Float64() float64 { return 0.5 }
func (fixedRand) IntN(int) int     { return 3 }

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) listen(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 || r.states[len(r.states)-1] != v.State {
		r.states = append(r.states, v.State)
	}
}

func (r *stateRecorder) seen() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newTestSubmissionController(store *testutil.MockDocumentStore) (*SubmissionController, *testutil.MockLogger) {
	logger := &testutil.MockLogger{}
	repo := NewPostRepository(store, "", logger)
	sc := NewSubmissionController(repo, &testutil.MockTokenProvider{Token: "user_test_1"}, layout.NewAllocator(fixedRand{}), logger)
	return sc, logger
}

func TestSubmit_ValidDraftReachesSuccess(t *testing.T) {
	store := &testutil.MockDocumentStore{}
	sc, _ := newTestSubmissionController(store)
	rec := &stateRecorder{}
	sc.SetListener(rec.listen)

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	require.NoError(t, sc.Submit(context.Background()))

	assert.Equal(t, StateSuccess, sc.State())
	assert.Equal(t, []State{StateIdle, StateValidating, StateSubmitting, StateSuccess}, rec.seen())
	assert.NotContains(t, rec.seen(), StateError)

	v := sc.View()
	assert.Empty(t, v.Name)
	assert.Empty(t, v.Message)
	assert.Empty(t, v.Error)
	assert.True(t, v.HasPosted)
	assert.False(t, v.CanSubmit)

	require.Equal(t, 1, store.AppendCount())
	assert.Equal(t, "user_test_1", store.AppendCalls[0].Data["visitorToken"])
}

func TestSubmit_InvalidInputNeverWrites(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		message string
		reason  string
	}{
		{"empty message", "Ana", "", models.ReasonMissingFields},
		{"blank message", "Ana", "   ", models.ReasonMissingFields},
		{"empty name", "", "Hello", models.ReasonMissingFields},
		{"message too long", "Ana", strings.Repeat("x", models.MaxMessageLength+1), models.ReasonMessageTooLong},
		{"name too long", strings.Repeat("n", models.MaxNameLength+1), "Hello", models.ReasonNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &testutil.MockDocumentStore{}
			sc, _ := newTestSubmissionController(store)
			sc.SetName(tt.user)
			sc.SetMessage(tt.message)

			err := sc.Submit(context.Background())
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Equal(t, 0, store.AppendCount())
			assert.Empty(t, store.QueryCalls)

			v := sc.View()
			assert.Equal(t, StateError, v.State)
			assert.Equal(t, tt.reason, v.Error)
			assert.Equal(t, tt.user, v.Name)
			assert.Equal(t, tt.message, v.Message)
		})
	}
}

func TestSubmit_WriteFailureKeepsFieldsAndAllowsRetry(t *testing.T) {
	store := &testutil.MockDocumentStore{AppendErr: errors.New("network unreachable")}
	sc, logger := newTestSubmissionController(store)

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	err := sc.Submit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrWrite)

	v := sc.View()
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, models.ReasonWriteFailed, v.Error)
	assert.Equal(t, "Ana", v.Name)
	assert.Equal(t, "Hello wall", v.Message)
	assert.False(t, v.HasPosted)
	assert.True(t, v.CanSubmit)
	assert.Equal(t, 1, logger.Count("error"))

	store.AppendErr = nil
	require.NoError(t, sc.Submit(context.Background()))
	assert.Equal(t, StateSuccess, sc.State())
	assert.Empty(t, sc.View().Error)
	assert.Equal(t, 2, store.AppendCount())
}

func TestSubmit_WhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	store := &testutil.MockDocumentStore{AppendGate: gate}
	sc, _ := newTestSubmissionController(store)
	sc.SetName("Ana")
	sc.SetMessage("Hello wall")

	done := make(chan error, 1)
	go func() { done <- sc.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return sc.State() == StateSubmitting }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, sc.View().CanSubmit)
	assert.ErrorIs(t, sc.Submit(context.Background()), models.ErrSubmitInFlight)
	assert.Equal(t, StateSubmitting, sc.State())

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateSuccess, sc.State())
	assert.Equal(t, 1, store.AppendCount())
}

func TestSubmit_WhileCheckingPriorPosts(t *testing.T) {
	gate := make(chan struct{})
	store := &testutil.MockDocumentStore{QueryGate: gate}
	sc, _ := newTestSubmissionController(store)
	sc.SetName("Ana")
	sc.SetMessage("Hello wall")

	done := make(chan error, 1)
	go func() { done <- sc.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return store.QueryCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateValidating, sc.State())
	assert.False(t, sc.View().CanSubmit)
	assert.ErrorIs(t, sc.Submit(context.Background()), models.ErrSubmitInFlight)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateSuccess, sc.State())
	assert.Equal(t, 1, store.AppendCount())
	assert.Equal(t, 1, store.QueryCount())
}

func TestSubmit_AfterSuccessIsDuplicate(t *testing.T) {
	store := &testutil.MockDocumentStore{}
	sc, _ := newTestSubmissionController(store)
	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	require.NoError(t, sc.Submit(context.Background()))

	sc.SetName("Ana")
	sc.SetMessage("Again")
	assert.ErrorIs(t, sc.Submit(context.Background()), models.ErrDuplicatePost)
	assert.Equal(t, StateSuccess, sc.State())
	assert.Equal(t, 1, store.AppendCount())
}

func TestLoad_PriorPostDisablesForm(t *testing.T) {
	store := &testutil.MockDocumentStore{
		QueryRecords: []docstore.Record{{ID: "a", CreatedAt: time.Now(), Data: map[string]any{"visitorToken": "user_test_1"}}},
	}
	sc, _ := newTestSubmissionController(store)

	sc.Load(context.Background())
	v := sc.View()
	assert.True(t, v.HasPosted)
	assert.False(t, v.CanSubmit)

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	err := sc.Submit(context.Background())
	assert.ErrorIs(t, err, models.ErrDuplicatePost)
	assert.Equal(t, StateError, sc.State())
	assert.Equal(t, models.ReasonAlreadyPosted, sc.View().Error)
	assert.Equal(t, 0, store.AppendCount())
	assert.Len(t, store.QueryCalls, 1)
}

func TestLoad_QueryFailureLeavesFormEnabled(t *testing.T) {
	store := &testutil.MockDocumentStore{QueryErr: errors.New("offline")}
	sc, logger := newTestSubmissionController(store)

	sc.Load(context.Background())
	assert.False(t, sc.View().HasPosted)
	assert.True(t, sc.View().CanSubmit)
	assert.Equal(t, 1, logger.Count("error"))

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	require.NoError(t, sc.Submit(context.Background()))
	assert.Equal(t, 1, store.AppendCount())
}

func TestSubmit_ChecksPriorPostsLazily(t *testing.T) {
	store := &testutil.MockDocumentStore{}
	sc, _ := newTestSubmissionController(store)

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	require.NoError(t, sc.Submit(context.Background()))
	require.Len(t, store.QueryCalls, 1)
	assert.Equal(t, "user_test_1", store.QueryCalls[0].Value)
}

func TestSubmit_PlacementFollowsLoadedPostCount(t *testing.T) {
	store := &testutil.MockDocumentStore{}
	sc, _ := newTestSubmissionController(store)
	sc.Mount()
	defer sc.Unmount()

	at := time.Now()
	var records []docstore.Record
	for _, id := range []string{"a", "b", "c", "d"} {
		records = append(records, docstore.Record{ID: id, CreatedAt: at, Data: map[string]any{"name": id, "message": "m"}})
	}
	store.Push(records)

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	require.NoError(t, sc.Submit(context.Background()))

	placement := store.AppendCalls[0].Data["placement"].(map[string]any)
	assert.Equal(t, float64(1), placement["column"])
	assert.Equal(t, float64(1), placement["row"])
	assert.Equal(t, float64(3), placement["color"])
}

func TestMount_FeedUpdatesView(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &testutil.MockDocumentStore{}
	sc, _ := newTestSubmissionController(store)
	sc.now = func() time.Time { return now }

	assert.True(t, sc.View().Loading)
	sc.Mount()
	sc.Mount()
	assert.Equal(t, 1, store.Subscriptions)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sc.AwaitFeed(ctx), context.DeadlineExceeded)

	store.Push([]docstore.Record{
		{ID: "b", CreatedAt: now.Add(-3 * time.Hour), Data: map[string]any{"name": "Ben", "message": "hey"}},
		{ID: "a", CreatedAt: now.Add(-10 * time.Second), Data: map[string]any{"name": "Ana", "message": "hi"}},
	})
	require.NoError(t, sc.AwaitFeed(context.Background()))

	v := sc.View()
	assert.False(t, v.Loading)
	assert.Equal(t, "2 posts", v.PostCount)
	require.Len(t, v.Posts, 2)
	assert.Equal(t, "Ana", v.Posts[0].Name)
	assert.Equal(t, "Just now", v.Posts[0].TimeAgo)
	assert.Equal(t, "3h ago", v.Posts[1].TimeAgo)

	sc.Unmount()
	sc.Unmount()
	assert.Equal(t, 1, store.Unsubscribes)
}

func TestMount_RemountWaitsForFreshSnapshot(t *testing.T) {
	store := &testutil.MockDocumentStore{}
	sc, _ := newTestSubmissionController(store)

	sc.Mount()
	store.Push(nil)
	require.NoError(t, sc.AwaitFeed(context.Background()))
	sc.Unmount()

	sc.Mount()
	defer sc.Unmount()
	assert.True(t, sc.View().Loading)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sc.AwaitFeed(ctx), context.DeadlineExceeded)

	store.Push([]docstore.Record{{ID: "a", CreatedAt: time.Now(), Data: map[string]any{"name": "Ana", "message": "hi"}}})
	require.NoError(t, sc.AwaitFeed(context.Background()))
	assert.False(t, sc.View().Loading)
	assert.Equal(t, 2, store.Subscriptions)
}

func TestMount_FeedErrorShownInView(t *testing.T) {
	store := &testutil.MockDocumentStore{}
	sc, logger := newTestSubmissionController(store)
	sc.Mount()
	defer sc.Unmount()

	store.Fail(errors.New("permission denied"))
	require.NoError(t, sc.AwaitFeed(context.Background()))

	v := sc.View()
	assert.False(t, v.Loading)
	assert.Equal(t, models.ReasonFeedFailed, v.FeedError)
	assert.Empty(t, v.Posts)
	assert.Equal(t, 1, logger.Count("error"))
}

func TestVisitorFlow_EndToEnd(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	logger := &testutil.MockLogger{}
	repo := NewPostRepository(store, "", logger)
	storage := identity.NewMemoryStorage()
	ctx := context.Background()

	tokens := identity.NewStore(storage, logger)
	sc := NewSubmissionController(repo, tokens, layout.NewAllocator(nil), logger)
	sc.Mount()
	defer sc.Unmount()
	require.NoError(t, sc.AwaitFeed(ctx))

	sc.Load(ctx)
	assert.False(t, sc.View().HasPosted)

	sc.SetName("Ana")
	sc.SetMessage("Hello wall")
	require.NoError(t, sc.Submit(ctx))
	assert.Equal(t, StateSuccess, sc.State())

	token := tokens.GetOrCreateToken()
	posted, err := repo.HasVisitorPosted(ctx, token)
	require.NoError(t, err)
	assert.True(t, posted)

	require.Eventually(t, func() bool { return len(sc.View().Posts) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Ana", sc.View().Posts[0].Name)
	assert.Equal(t, "1 post", sc.View().PostCount)

	// Same visitor, new session.
	again := NewSubmissionController(repo, identity.NewStore(storage, logger), layout.NewAllocator(nil), logger)
	again.Load(ctx)
	again.SetName("Ana")
	again.SetMessage("Second try")
	err = again.Submit(ctx)
	assert.ErrorIs(t, err, models.ErrDuplicatePost)
	assert.Equal(t, StateError, again.State())

	records, err := store.QueryWhere(ctx, DefaultCollection, "visitorToken", token)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
