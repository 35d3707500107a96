// README: In-memory document store with change subscriptions (tests, local dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Memory implements order.Store entirely in process. It honours the same
// contract as the Firestore adapter: version-keyed conditional updates and
// independent, coalescing change subscriptions.
type Memory struct {
	mu     sync.RWMutex
	docs   map[types.ID]*order.Order
	subs   map[*memorySubscription]struct{}
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[types.ID]*order.Order),
		subs: make(map[*memorySubscription]struct{}),
	}
}

func (m *Memory) Create(ctx context.Context, o *order.Order) (types.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := types.ID(uuid.NewString())

	m.mu.Lock()
	o.ID = id
	o.Version = 1
	stored := o.Clone()
	m.docs[id] = stored
	m.notifyLocked(order.Change{Kind: order.ChangeCreated, Order: stored})
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(ctx context.Context, id types.ID) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.docs[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (m *Memory) ConditionalUpdate(ctx context.Context, o *order.Order, expectedVersion int64) (*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.docs[o.ID]
	if !ok {
		return nil, order.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, order.ErrConflict
	}

	next := o.Clone()
	next.Version = expectedVersion + 1
	m.docs[o.ID] = next
	m.notifyUpdateLocked(stored, next)
	return next.Clone(), nil
}

func (m *Memory) Query(ctx context.Context, q order.Query) ([]*order.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*order.Order
	for _, o := range m.docs {
		if q.Matches(o) {
			out = append(out, o.Clone())
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, q order.Query) (order.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := newMemorySubscription(m, q)

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go sub.dispatch()
	return sub, nil
}

// notifyLocked fans the change out to every matching subscriber. Enqueueing
// never blocks; a slow subscriber coalesces into a reset instead of stalling
// the store or its peers.
func (m *Memory) notifyLocked(c order.Change) {
	for sub := range m.subs {
		if c.Kind == order.ChangeReset || sub.query.Matches(c.Order) {
			sub.enqueue(c)
		}
	}
}

// notifyUpdateLocked tells each subscriber what the update means for its
// query: still matching is an update, matching before but not after is a
// removal, mirroring what a Firestore snapshot listener delivers.
func (m *Memory) notifyUpdateLocked(prev, next *order.Order) {
	for sub := range m.subs {
		switch {
		case sub.query.Matches(next):
			sub.enqueue(order.Change{Kind: order.ChangeUpdated, Order: next})
		case sub.query.Matches(prev):
			sub.enqueue(order.Change{Kind: order.ChangeRemoved, Order: next})
		}
	}
}

func (m *Memory) drop(sub *memorySubscription) {
	m.mu.Lock()
	delete(m.subs, sub)
	m.mu.Unlock()
}

// maxQueuedChanges bounds a subscriber's backlog before pending changes are
// collapsed into a single reset notification.
const maxQueuedChanges = 64

type memorySubscription struct {
	store *Memory
	query order.Query
	ch    chan order.Change
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	cond    *sync.Cond
	pending []order.Change
	closed  bool
}

func newMemorySubscription(m *Memory, q order.Query) *memorySubscription {
	s := &memorySubscription{
		store: m,
		query: q,
		ch:    make(chan order.Change),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memorySubscription) Changes() <-chan order.Change { return s.ch }

// Err always returns nil: the in-process feed has no transport to fail.
func (s *memorySubscription) Err() error { return nil }

// Close unregisters the subscription before returning, so no further store
// traffic reaches it once the call completes.
func (s *memorySubscription) Close() {
	s.store.drop(s)
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		s.cond.Signal()
		s.mu.Unlock()
	})
}

func (s *memorySubscription) enqueue(c order.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.pending) >= maxQueuedChanges {
		s.pending = append(s.pending[:0], order.Change{Kind: order.ChangeReset})
	} else {
		s.pending = append(s.pending, c)
	}
	s.cond.Signal()
}

// dispatch forwards queued changes to the consumer channel. Only this
// subscriber blocks on its own slow consumer; the store never does.
func (s *memorySubscription) dispatch() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		c := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.ch <- c:
		case <-s.done:
			return
		}
	}
}
