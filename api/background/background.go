package background

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrShuttingDown = errors.New("background tasks are shutting down")

type Background struct {
	log    logrus.FieldLogger
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Add runs fn in its own goroutine. A panicking task is logged and does not
// take the process down.
func (b *Background) Add(fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrShuttingDown
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithField("trace", string(debug.Stack())).Error(fmt.Sprintf("background task panic: %v", rec))
			}
		}()

		fn()
	}()
	return nil
}

func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
