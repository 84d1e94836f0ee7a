package invoke

import (
	"context"
	"sync"
)

// Locks hands out a bounded number of slots per resource key, so a device is
// never driven by more invocations than it has slots.
type Locks struct {
	mu    sync.Mutex
	slots int
	sems  map[string]chan struct{}
}

// NewLocks returns Locks with slots per key (at least 1).
func NewLocks(slots int) *Locks {
	if slots < 1 {
		slots = 1
	}
	return &Locks{slots: slots, sems: make(map[string]chan struct{})}
}

func (l *Locks) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = make(chan struct{}, l.slots)
		l.sems[key] = s
	}
	return s
}

// Acquire blocks until a slot for key is free or ctx is done. The returned
// release func must be called exactly once.
func (l *Locks) Acquire(ctx context.Context, key string) (release func(), err error) {
	s := l.sem(key)
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
