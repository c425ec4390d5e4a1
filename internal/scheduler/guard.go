package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// JobFunc unit of scheduled work.
type JobFunc func(ctx context.Context) error

// Guard runs a job at most once at a time. A trigger that arrives while the job is
// running is dropped, not queued. Errors and panics are logged and swallowed.
// Guards sharing a serial lock never run their jobs at the same time.
type Guard struct {
	name    string
	fn      JobFunc
	running atomic.Bool
	serial  sync.Locker
	logger  *zap.Logger
}

func NewGuard(name string, fn JobFunc, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{name: name, fn: fn, logger: logger}
}

// Running reports whether the job is in progress.
func (g *Guard) Running() bool {
	return g.running.Load()
}

// Trigger runs the job on the calling goroutine. It returns false when the trigger
// was skipped because a previous run is still in progress.
func (g *Guard) Trigger(ctx context.Context) bool {
	if !g.running.CompareAndSwap(false, true) {
		g.logger.Warn("previous run still in progress, skipping", zap.String("job", g.name))
		return false
	}
	defer g.running.Store(false)

	if g.serial != nil {
		g.serial.Lock()
		defer g.serial.Unlock()
	}

	start := time.Now()
	err := g.safeRun(ctx)
	if err != nil {
		g.logger.Error("job failed", zap.String("job", g.name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return true
	}
	g.logger.Info("job finished", zap.String("job", g.name), zap.Duration("took", time.Since(start)))
	return true
}

func (g *Guard) safeRun(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			g.logger.Error("job panicked", zap.String("job", g.name), zap.ByteString("stack", debug.Stack()))
		}
	}()
	return g.fn(ctx)
}
