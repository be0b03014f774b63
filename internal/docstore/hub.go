package docstore

import "sync"

type event struct {
	records []Record
	err     error
}

// subscription queues events without bound and delivers them in order on its
// own goroutine, so publishers never block on a slow consumer.
type subscription struct {
	collection string
	orderBy    string
	direction  Direction
	onChange   func([]Record)
	onError    func(error)

	mu      sync.Mutex
	pending []event
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	release func()
}

func newSubscription(collection, orderBy string, direction Direction, onChange func([]Record), onError func(error)) *subscription {
	return &subscription{
		collection: collection,
		orderBy:    orderBy,
		direction:  direction,
		onChange:   onChange,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// snapshot orders a private copy of records for this subscriber.
func (s *subscription) snapshot(records []Record) event {
	out := cloneRecords(records)
	SortRecords(out, s.orderBy, s.direction)
	return event{records: out}
}

func (s *subscription) push(ev event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.done)
		if s.release != nil {
			s.release()
		}
	})
}

func (s *subscription) next() (event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return event{}, false
	}
	ev := s.pending[0]
	s.pending[0] = event{}
	s.pending = s.pending[1:]
	return ev, true
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			select {
			case <-s.done:
				return
			default:
			}
			if ev.err != nil {
				s.stop()
				if s.onError != nil {
					s.onError(ev.err)
				}
				return
			}
			if s.onChange != nil {
				s.onChange(ev.records)
			}
		}
	}
}

type hub struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscription
}

func newHub() *hub {
	return &hub{subs: make(map[uint64]*subscription)}
}

// add registers s, queues its first event and starts delivery.
func (h *hub) add(s *subscription, first event) Unsubscribe {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = s
	h.mu.Unlock()

	s.release = func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	s.push(first)
	go s.run()
	return s.stop
}

// publish queues a fresh snapshot of records for every subscriber of collection.
func (h *hub) publish(collection string, records []Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.collection == collection {
			s.push(s.snapshot(records))
		}
	}
}

// fail ends every subscriber of collection with err.
func (h *hub) fail(collection string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.collection == collection {
			s.push(event{err: err})
		}
	}
}

func (h *hub) failAll(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.push(event{err: err})
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
