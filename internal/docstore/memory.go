package docstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the serialisable content of a MemoryStore.
type Snapshot struct {
	Version     int                 `json:"version"`
	Collections map[string][]Record `json:"collections"`
}

const SnapshotVersion = 1

// Snapshotter is implemented by backends that keep their data in memory and
// rely on external persistence.
type Snapshotter interface {
	Snapshot() *Snapshot
	Restore(snapshot *Snapshot) error
}

type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock overrides the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

func buildOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Record
	revisions   map[string]uint64
	hub         *hub
	opts        options
	closed      bool
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Record),
		revisions:   make(map[string]uint64),
		hub:         newHub(),
		opts:        buildOptions(opts),
	}
}

func (m *MemoryStore) Name() string {
	return "memory"
}

func (m *MemoryStore) Append(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := normalizeData(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}
	rec := Record{
		ID:        m.opts.newID(),
		CreatedAt: m.opts.now().UTC(),
		Data:      doc,
	}
	m.collections[collection] = append(m.collections[collection], rec)
	m.revisions[collection]++
	m.hub.publish(collection, m.collections[collection])
	return rec.ID, nil
}

func (m *MemoryStore) SubscribeOrdered(collection, orderBy string, direction Direction, onChange func([]Record), onError func(error)) Unsubscribe {
	sub := newSubscription(collection, orderBy, direction, onChange, onError)
	if err := validateSubscription(collection, orderBy, direction); err != nil {
		return m.hub.add(sub, event{err: err})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return m.hub.add(sub, event{err: ErrClosed})
	}
	return m.hub.add(sub, sub.snapshot(m.collections[collection]))
}

func (m *MemoryStore) QueryWhere(ctx context.Context, collection, field string, value any) ([]Record, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ValidateField(field); err != nil {
		return nil, err
	}
	want, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	var matched []Record
	for _, rec := range m.collections[collection] {
		got, ok := rec.Data[field]
		if ok && got == want {
			matched = append(matched, rec)
		}
	}
	out := cloneRecords(matched)
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) Revision(collection string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.revisions[collection]
}

func (m *MemoryStore) Subscriptions() int {
	return m.hub.count()
}

// Close fails all open subscriptions with ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.hub.failAll(ErrClosed)
	return nil
}

func (m *MemoryStore) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := &Snapshot{
		Version:     SnapshotVersion,
		Collections: make(map[string][]Record, len(m.collections)),
	}
	for name, records := range m.collections {
		snap.Collections[name] = cloneRecords(records)
	}
	return snap
}

// Restore replaces the content of every collection present in the snapshot
// and notifies their subscribers.
func (m *MemoryStore) Restore(snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}
	for name := range snapshot.Collections {
		if err := ValidateCollection(name); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for name, records := range snapshot.Collections {
		m.collections[name] = cloneRecords(records)
		m.revisions[name]++
		m.hub.publish(name, m.collections[name])
	}
	return nil
}

func validateSubscription(collection, orderBy string, direction Direction) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if orderBy != FieldCreatedAt {
		if err := ValidateField(orderBy); err != nil {
			return err
		}
	}
	if direction != Ascending && direction != Descending {
		return ErrInvalidDirection
	}
	return nil
}
