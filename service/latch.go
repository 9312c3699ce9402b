package service

import (
	"sync"
	"time"
)

// Latch is a one-shot gate. Release opens it; every Await after that
// returns true immediately.
type Latch struct {
	once sync.Once
	ch   chan struct{}
}

// NewLatch creates a closed latch
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Release opens the latch. Further calls do nothing.
func (l *Latch) Release() {
	l.once.Do(func() { close(l.ch) })
}

// Await blocks until the latch opens or timeout elapses and reports
// whether it opened. A non-positive timeout only checks the current state.
func (l *Latch) Await(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-l.ch:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.ch:
		return true
	case <-timer.C:
		return false
	}
}

// Done returns a channel closed on release
func (l *Latch) Done() <-chan struct{} {
	return l.ch
}
