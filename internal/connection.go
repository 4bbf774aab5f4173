package internal

import (
	"context"
	"sync"
)

// ConnectionManager handles thread-safe connection initialization for the
// client. Initialization happens exactly once, even when triggered
// concurrently from multiple goroutines.
type ConnectionManager struct {
	once  sync.Once
	err   error
	ready chan struct{}
}

// NewConnectionManager creates a new ConnectionManager instance ready for use.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		ready: make(chan struct{}),
	}
}

// Initialize runs the provided initialization function exactly once. If
// called multiple times concurrently, only the first call executes the
// function; all calls wait for it to complete and return its result.
func (cm *ConnectionManager) Initialize(ctx context.Context, fn func(context.Context) error) error {
	cm.once.Do(func() {
		cm.err = fn(ctx)
		close(cm.ready)
	})

	<-cm.ready
	return cm.err
}

// Error returns the error from the initialization attempt, if any, without
// triggering initialization.
func (cm *ConnectionManager) Error() error {
	select {
	case <-cm.ready:
		return cm.err
	default:
		return nil
	}
}
