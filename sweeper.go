package goToken

import (
	"context"
	"sync"
	"time"
)

// Sweeper runs the periodic expiry sweep. It is owned by the engine: Build
// starts it when sweep is enabled, Close stops it. Nothing registers itself
// at import time.
type Sweeper struct {
	interval time.Duration
	sweep    func(ctx context.Context) (int, error)

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newSweeper(interval time.Duration, sweep func(ctx context.Context) (int, error)) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		interval: interval,
		sweep:    sweep,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. Calling Start more than once is a no-op.
func (s *Sweeper) Start() {
	if s == nil {
		return
	}
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
// Safe to call multiple times.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.startOnce.Do(func() {
		close(s.doneCh)
	})
	<-s.doneCh
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// Sweep outcome goes to metrics and audit inside the callback;
			// a failed pass is retried on the next tick.
			_, _ = s.sweep(context.Background())
		}
	}
}
