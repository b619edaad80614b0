package broadcast

import "sync"

// latch is a boolean flag whose Wait channel is closed while the flag is set.
// Clearing swaps in a fresh open channel.
type latch struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

func (l *latch) Set() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set {
		l.set = true
		close(l.ch)
	}
}

func (l *latch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.set {
		l.set = false
		l.ch = make(chan struct{})
	}
}

func (l *latch) IsSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set
}

// Wait returns a channel that is closed once the flag is set. A caller that
// observed the flag clear must call Wait again after it is re-set.
func (l *latch) Wait() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}
