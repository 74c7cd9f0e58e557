package sorter

import (
	"context"
	"sync"
)

// Subscription is an ordered stream of SortState transitions. The first
// value is the state at subscription time, like a behaviour subject.
// Publishing never blocks the sort: states queue until Next takes them.
type Subscription struct {
	engine *Engine

	mu     sync.Mutex
	queue  []SortState
	closed bool
	notify chan struct{}
}

// Subscribe registers a new state stream. Close it when done.
func (e *Engine) Subscribe() *Subscription {
	s := &Subscription{
		engine: e,
		notify: make(chan struct{}, 1),
	}

	e.mu.Lock()
	s.push(e.state.clone())
	e.subs[s] = struct{}{}
	e.mu.Unlock()

	return s
}

func (s *Subscription) push(st SortState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, st)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next returns the next state, blocking until one is published, ctx ends
// or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (SortState, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			st := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return st, nil
		}
		if s.closed {
			s.mu.Unlock()
			return SortState{}, ErrSubscriptionClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return SortState{}, ctx.Err()
		}
	}
}

// Close detaches the subscription and wakes any blocked Next.
func (s *Subscription) Close() {
	s.engine.mu.Lock()
	delete(s.engine.subs, s)
	s.engine.mu.Unlock()

	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
