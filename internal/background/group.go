// Package background runs fire-and-forget work that must be drained on
// shutdown. The audit recorder and share notifications use it.
package background

import (
	"context"
	"fmt"
	"sync"
)

// Group tracks detached goroutines. Once Wait has been called the group is
// closed and Go refuses new work, so a late caller can never race the drain.
type Group struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Go runs fn on a new goroutine and reports whether it was started. It
// returns false after Wait has been called.
func (g *Group) Go(fn func()) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		fn()
	}()
	return true
}

// Wait closes the group and blocks until started work finishes or ctx is
// done. It may be called more than once.
func (g *Group) Wait(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background work: %w", ctx.Err())
	}
}
