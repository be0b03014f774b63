package testutil

import (
	"context"
	"fmt"
	"freedomwall/internal/docstore"
	"freedomwall/internal/providers"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

type AppendCall struct {
	Collection string
	Data       map[string]any
}

type QueryCall struct {
	Collection string
	Field      string
	Value      any
}

// MockDocumentStore implements docstore.DocumentStore. Appends and queries
// are recorded; subscription callbacks only fire through Push and Fail.
type MockDocumentStore struct {
	mu sync.Mutex

	AppendCalls []AppendCall
	AppendErr   error
	// AppendGate, when set, blocks Append until it is closed.
	AppendGate chan struct{}

	QueryCalls   []QueryCall
	QueryRecords []docstore.Record
	QueryErr     error
	// QueryGate, when set, blocks QueryWhere until it is closed.
	QueryGate chan struct{}

	Subscriptions int
	Unsubscribes  int
	subs          []*mockSubscription
	nextID        int
}

type mockSubscription struct {
	onChange func([]docstore.Record)
	onError  func(error)
	active   bool
}

func (m *MockDocumentStore) Append(ctx context.Context, collection string, data map[string]any) (string, error) {
	m.mu.Lock()
	m.AppendCalls = append(m.AppendCalls, AppendCall{Collection: collection, Data: data})
	gate := m.AppendGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return "", m.AppendErr
	}
	m.nextID++
	return fmt.Sprintf("doc-%d", m.nextID), nil
}

func (m *MockDocumentStore) SubscribeOrdered(collection, orderBy string, direction docstore.Direction, onChange func([]docstore.Record), onError func(error)) docstore.Unsubscribe {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &mockSubscription{onChange: onChange, onError: onError, active: true}
	m.subs = append(m.subs, sub)
	m.Subscriptions++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		sub.active = false
		m.Unsubscribes++
	}
}

func (m *MockDocumentStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]docstore.Record, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, QueryCall{Collection: collection, Field: field, Value: value})
	gate := m.QueryGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return m.QueryRecords, nil
}

func (m *MockDocumentStore) active() []*mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mockSubscription
	for _, s := range m.subs {
		if s.active {
			out = append(out, s)
		}
	}
	return out
}

// Push delivers a snapshot to every active subscription.
func (m *MockDocumentStore) Push(records []docstore.Record) {
	for _, s := range m.active() {
		s.onChange(records)
	}
}

// Fail delivers err to every active subscription and ends them.
func (m *MockDocumentStore) Fail(err error) {
	for _, s := range m.active() {
		m.mu.Lock()
		s.active = false
		m.mu.Unlock()
		if s.onError != nil {
			s.onError(err)
		}
	}
}

func (m *MockDocumentStore) AppendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.AppendCalls)
}

func (m *MockDocumentStore) QueryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.QueryCalls)
}

// MockTokenProvider hands out a fixed token.
type MockTokenProvider struct {
	Token string
}

func (m *MockTokenProvider) GetOrCreateToken() string { return m.Token }

type MockCompressor struct {
	CompressErr   error
	DecompressErr error
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressErr != nil {
		return nil, m.CompressErr
	}
	return append([]byte(nil), val...), nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressErr != nil {
		return nil, m.DecompressErr
	}
	return append([]byte(nil), val...), nil
}

func (m *MockCompressor) Close() {}

// MockMetrics implements providers.MetricsProviderInterface.
type MockMetrics struct {
	mu                  sync.Mutex
	Appends             map[string]int
	FailedAppends       map[string]int
	Records             map[string]int
	PersistenceObserved int
	CacheHits           int
	CacheMisses         int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Appends:       make(map[string]int),
		FailedAppends: make(map[string]int),
		Records:       make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncAppendsTotal(collection string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.Appends[collection]++
	} else {
		m.FailedAppends[collection]++
	}
}

func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistenceObserved++
}

func (m *MockMetrics) SetRecordsTotal(collection string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[collection] = count
}
