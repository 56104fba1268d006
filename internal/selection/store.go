package selection

import (
	"sync"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// Listener receives every selection change, in registration order
type Listener func(models.SelectionChanged)

// Write is a pending selection write waiting on the notify queue
type Write struct {
	Range  models.YearRange
	Source string
}

// Queue holds writes issued while listeners are being notified
type Queue interface {
	Push(w Write)
	Pop() (Write, bool)
	Len() int
}

// FIFO is the default Queue
type FIFO struct {
	items []Write
}

func (q *FIFO) Push(w Write) {
	q.items = append(q.items, w)
}

func (q *FIFO) Pop() (Write, bool) {
	if len(q.items) == 0 {
		return Write{}, false
	}
	w := q.items[0]
	q.items[0] = Write{}
	q.items = q.items[1:]
	return w, true
}

func (q *FIFO) Len() int {
	return len(q.items)
}

// Option configures a Store
type Option func(*Store)

// WithQueue injects the notify queue (tests use this to observe queued writes)
func WithQueue(q Queue) Option {
	return func(s *Store) {
		s.queue = q
	}
}

type subscription struct {
	id int
	fn Listener
}

// Store is the shared year-range selection of the linked charts.
//
// Set notifies listeners synchronously. A Set issued while a notification is
// running, whether from a listener or another goroutine, is queued and applied
// by the outermost Set once the current round finishes, so notifications never
// nest.
type Store struct {
	mu          sync.Mutex
	current     models.YearRange
	seq         uint64
	listeners   []subscription
	nextID      int
	queue       Queue
	dispatching bool
}

// NewStore creates an unset selection store
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = &FIFO{}
	}
	return s
}

// Get returns the current range
func (s *Store) Get() models.YearRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Seq returns the number of writes applied so far
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Set overwrites the range and notifies listeners
func (s *Store) Set(r models.YearRange) {
	s.SetFrom("", r)
}

// Clear resets the selection to unset
func (s *Store) Clear() {
	s.SetFrom("", models.Unset())
}

// SetFrom is Set with the originating component recorded on the event
func (s *Store) SetFrom(source string, r models.YearRange) {
	s.mu.Lock()
	s.queue.Push(Write{Range: r, Source: source})
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true

	defer func() {
		if p := recover(); p != nil {
			s.mu.Lock()
			s.dispatching = false
			s.mu.Unlock()
			panic(p)
		}
	}()

	for {
		w, ok := s.queue.Pop()
		if !ok {
			s.dispatching = false
			s.mu.Unlock()
			return
		}

		s.current = w.Range
		s.seq++
		event := models.SelectionChanged{Range: w.Range, Source: w.Source, Seq: s.seq}
		listeners := make([]subscription, len(s.listeners))
		copy(listeners, s.listeners)
		s.mu.Unlock()

		for _, l := range listeners {
			l.fn(event)
		}

		s.mu.Lock()
	}
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}
