// Package loop provides the single-consumer event loop that drives input
// contexts. Functions posted from any goroutine run one at a time, in
// order, on the goroutine that called Run.
package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Run when the loop was stopped.
var ErrStopped = errors.New("loop stopped")

// Loop is a FIFO of functions.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
	stopped bool
}

// New creates a loop.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Post queues f. It reports false once the loop has been stopped.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop makes Run return after the function currently executing. Queued
// functions are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.stop)
	})
}

// Run executes posted functions until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return ErrStopped
		case <-l.wake:
		}

		for {
			f, ok := l.next()
			if !ok {
				break
			}
			f()
			select {
			case <-l.stop:
				return ErrStopped
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	f := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return f, true
}

// Call posts f and waits for it to finish. It returns false if the loop
// stopped first or ctx expired.
func (l *Loop) Call(ctx context.Context, f func()) bool {
	done := make(chan struct{})
	if !l.Post(func() { f(); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
