// Package runtimectl coordinates the daemon's goroutine lifecycle: signal-
// driven shutdown and a shared errgroup so any one component failing tears
// the rest down cleanly, generalizing the teacher's cmd/server and
// cmd/scheduler main()'s `signal.NotifyContext` + per-goroutine manual
// shutdown sequence into a single reusable type.
package runtimectl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/usched-go/usched/internal/errs"
)

// Runtime owns the daemon's root context and the errgroup every long-lived
// component is registered against.
type Runtime struct {
	ctx    context.Context
	stop   context.CancelFunc
	group  *errgroup.Group
	logger *slog.Logger

	mu          sync.Mutex
	interrupted bool
}

// New builds a Runtime whose context is cancelled on SIGINT/SIGTERM.
func New(logger *slog.Logger) *Runtime {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	group, gctx := errgroup.WithContext(ctx)
	return &Runtime{
		ctx:    gctx,
		stop:   stop,
		group:  group,
		logger: logger.With("component", "runtimectl"),
	}
}

// Context returns the context components should select on for shutdown —
// cancelled either by a signal or by any registered Go func returning an
// error.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Go registers a long-lived component. If fn returns a non-nil error, the
// Runtime's context is cancelled, tearing down every other registered
// component. A panic inside fn is recovered, converted to an ErrFatal, and
// treated the same as a returned error — it never crosses this goroutine
// boundary to take down the whole process.
func (r *Runtime) Go(fn func(ctx context.Context) error) {
	r.group.Go(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = errs.Wrap(errs.ErrFatal, fmt.Errorf("panic in runtime component: %v", rec))
				r.logger.Error("recovered panic from registered component", "error", err)
			}
		}()
		return fn(r.ctx)
	})
}

// Interrupt cancels the runtime's context directly, for programmatic
// shutdown (e.g. an admin command), without waiting for an OS signal.
func (r *Runtime) Interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interrupted {
		return
	}
	r.interrupted = true
	r.logger.Info("interrupt requested")
	r.stop()
}

// Wait blocks until every registered component has returned, then returns
// the first non-nil error any of them reported (errgroup.Group.Wait's
// first-error-wins semantics).
func (r *Runtime) Wait() error {
	return r.group.Wait()
}

// Shutdown is a convenience wrapper pairing Interrupt with Wait under a
// bounded grace period, for components (e.g. an http.Server) that need an
// explicit Shutdown(ctx) call rather than reacting to context cancellation.
func (r *Runtime) Shutdown(grace time.Duration, shutdownFns ...func(ctx context.Context) error) error {
	r.Interrupt()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	for _, fn := range shutdownFns {
		if err := fn(shutdownCtx); err != nil {
			r.logger.Error("component shutdown failed", "error", err)
		}
	}

	return r.Wait()
}
