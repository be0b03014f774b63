package services

import (
	"context"
	"errors"
	"freedomwall/internal/docstore"
	"freedomwall/internal/identity"
	"freedomwall/internal/layout"
	"freedomwall/internal/models"
	"freedomwall/internal/providers"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	}
	return "unknown"
}

type PostView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Message   string            `json:"message"`
	CreatedAt time.Time         `json:"createdAt"`
	TimeAgo   string            `json:"timeAgo"`
	Placement *models.Placement `json:"placement,omitempty"`
}

// View is a copy of everything the form and the wall render.
type View struct {
	State     State      `json:"state"`
	Name      string     `json:"name"`
	Message   string     `json:"message"`
	Error     string     `json:"error,omitempty"`
	HasPosted bool       `json:"hasPosted"`
	CanSubmit bool       `json:"canSubmit"`
	Loading   bool       `json:"loading"`
	FeedError string     `json:"feedError,omitempty"`
	PostCount string     `json:"postCount"`
	Posts     []PostView `json:"posts"`
}

// SubmissionController drives the posting form: validation, the one post per
// visitor guard, the write and the error state. It also holds the live feed
// the wall is rendered from. It never holds its lock across a store call.
type SubmissionController struct {
	repo      PostRepositoryInterface
	identity  identity.TokenProvider
	allocator layout.AllocatorInterface
	logger    providers.Logger
	now       func() time.Time

	mu          sync.Mutex
	state       State
	name        string
	message     string
	errMsg      string
	hasPosted   bool
	checked     bool
	posts       []models.Post
	loading     bool
	feedErr     string
	unsubscribe docstore.Unsubscribe
	// loaded is closed by the first feed callback after each Mount.
	loaded       chan struct{}
	loadedClosed bool
	listener     func(View)
}

func NewSubmissionController(repo PostRepositoryInterface, tokens identity.TokenProvider, allocator layout.AllocatorInterface, logger providers.Logger) *SubmissionController {
	return &SubmissionController{
		repo:      repo,
		identity:  tokens,
		allocator: allocator,
		logger:    logger,
		now:       time.Now,
		state:     StateIdle,
		loading:   true,
		loaded:    make(chan struct{}),
	}
}

// SetListener registers fn to receive a View after every change.
func (sc *SubmissionController) SetListener(fn func(View)) {
	sc.mu.Lock()
	sc.listener = fn
	sc.mu.Unlock()
}

func (sc *SubmissionController) SetName(name string) {
	sc.mu.Lock()
	sc.name = name
	sc.mu.Unlock()
	sc.notify()
}

func (sc *SubmissionController) SetMessage(message string) {
	sc.mu.Lock()
	sc.message = message
	sc.mu.Unlock()
	sc.notify()
}

// Load asks the store whether this visitor has posted before. The answer is
// advisory; a failed query leaves the form enabled.
func (sc *SubmissionController) Load(ctx context.Context) {
	token := sc.identity.GetOrCreateToken()
	posted, err := sc.repo.HasVisitorPosted(ctx, token)
	if err != nil {
		sc.logger.Errorf(providers.TypeGet, "Error checking visitor posts: %s", err)
		return
	}
	sc.mu.Lock()
	sc.checked = true
	sc.hasPosted = sc.hasPosted || posted
	sc.mu.Unlock()
	sc.notify()
}

// Mount opens the live feed. Calling it while mounted does nothing.
func (sc *SubmissionController) Mount() {
	sc.mu.Lock()
	if sc.unsubscribe != nil {
		sc.mu.Unlock()
		return
	}
	sc.loading = true
	if sc.loadedClosed {
		sc.loaded = make(chan struct{})
		sc.loadedClosed = false
	}
	sc.mu.Unlock()

	unsubscribe := sc.repo.SubscribeLiveFeed(sc.onFeed, sc.onFeedError)

	sc.mu.Lock()
	sc.unsubscribe = unsubscribe
	sc.mu.Unlock()
}

// Unmount closes the live feed opened by Mount.
func (sc *SubmissionController) Unmount() {
	sc.mu.Lock()
	unsubscribe := sc.unsubscribe
	sc.unsubscribe = nil
	sc.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// AwaitFeed blocks until the first feed snapshot or feed error of the
// current mount arrives.
func (sc *SubmissionController) AwaitFeed(ctx context.Context) error {
	sc.mu.Lock()
	loaded := sc.loaded
	sc.mu.Unlock()

	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sc *SubmissionController) onFeed(posts []models.Post) {
	sc.mu.Lock()
	sc.posts = posts
	sc.loading = false
	sc.feedErr = ""
	sc.markLoadedLocked()
	sc.mu.Unlock()
	sc.notify()
}

func (sc *SubmissionController) onFeedError(err error) {
	sc.logger.Errorf(providers.TypeGet, "Error loading posts: %s", err)
	sc.mu.Lock()
	sc.loading = false
	sc.feedErr = models.ReasonFeedFailed
	sc.markLoadedLocked()
	sc.mu.Unlock()
	sc.notify()
}

func (sc *SubmissionController) markLoadedLocked() {
	if !sc.loadedClosed {
		close(sc.loaded)
		sc.loadedClosed = true
	}
}

// Submit validates the form and writes the post. The returned error is also
// reflected in the View; validation and duplicate errors never reach the store.
// A second call while one is validating or submitting gets ErrSubmitInFlight.
func (sc *SubmissionController) Submit(ctx context.Context) error {
	sc.mu.Lock()
	switch sc.state {
	case StateValidating, StateSubmitting:
		sc.mu.Unlock()
		return models.ErrSubmitInFlight
	case StateSuccess:
		sc.mu.Unlock()
		return models.ErrDuplicatePost
	}
	sc.state = StateValidating
	sc.errMsg = ""
	draft := models.NewDraft(sc.name, sc.message)
	checked := sc.checked
	sc.mu.Unlock()
	sc.notify()

	if err := draft.Validate(); err != nil {
		var verr *models.ValidationError
		reason := err.Error()
		if errors.As(err, &verr) {
			reason = verr.Reason
		}
		return sc.fail(reason, err)
	}

	token := sc.identity.GetOrCreateToken()
	if !checked {
		sc.Load(ctx)
	}

	sc.mu.Lock()
	if sc.hasPosted {
		sc.mu.Unlock()
		return sc.fail(models.ReasonAlreadyPosted, models.ErrDuplicatePost)
	}
	placement := sc.allocator.ComputePlacement(len(sc.posts))
	sc.state = StateSubmitting
	sc.mu.Unlock()
	sc.notify()

	if err := sc.repo.Submit(ctx, draft.Name, draft.Message, token, placement); err != nil {
		sc.logger.Errorf(providers.TypePost, "Error posting message: %s", err)
		return sc.fail(models.ReasonWriteFailed, err)
	}

	sc.mu.Lock()
	sc.state = StateSuccess
	sc.name = ""
	sc.message = ""
	sc.hasPosted = true
	sc.mu.Unlock()
	sc.notify()
	return nil
}

func (sc *SubmissionController) fail(reason string, err error) error {
	sc.mu.Lock()
	sc.state = StateError
	sc.errMsg = reason
	sc.mu.Unlock()
	sc.notify()
	return err
}

func (sc *SubmissionController) State() State {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

func (sc *SubmissionController) View() View {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.viewLocked()
}

func (sc *SubmissionController) viewLocked() View {
	now := sc.now()
	posts := make([]PostView, len(sc.posts))
	for i, p := range sc.posts {
		posts[i] = PostView{
			ID:        p.ID,
			Name:      p.Name,
			Message:   p.Message,
			CreatedAt: p.CreatedAt,
			TimeAgo:   FormatTimeAgo(p.CreatedAt, now),
			Placement: p.Placement,
		}
	}
	return View{
		State:     sc.state,
		Name:      sc.name,
		Message:   sc.message,
		Error:     sc.errMsg,
		HasPosted: sc.hasPosted,
		CanSubmit: !sc.hasPosted && sc.state != StateValidating && sc.state != StateSubmitting && sc.state != StateSuccess,
		Loading:   sc.loading,
		FeedError: sc.feedErr,
		PostCount: PostCountLabel(len(sc.posts)),
		Posts:     posts,
	}
}

func (sc *SubmissionController) notify() {
	sc.mu.Lock()
	listener := sc.listener
	var v View
	if listener != nil {
		v = sc.viewLocked()
	}
	sc.mu.Unlock()
	if listener != nil {
		listener(v)
	}
}
