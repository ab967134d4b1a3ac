// Package shutdown runs cleanup hooks once the process is asked to stop.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mut     sync.Mutex               //nolint:gochecknoglobals
	hooks   []func()                 //nolint:gochecknoglobals
	trigger = make(chan struct{}, 1) //nolint:gochecknoglobals
)

// BeforeShutdown registers a function to be called before the context returned by
// SetupHandler is canceled. Hooks run in registration order.
func BeforeShutdown(h func()) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// Shutdown triggers the shutdown process programmatically.
func Shutdown() {
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// SetupHandler starts listening for SIGINT and SIGTERM and returns a context that is
// canceled once one arrives, Shutdown is called or parent is done. The registered hooks
// run first, while the context is still alive.
func SetupHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer cancel()
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			slog.Warn("Received " + sig.String() + ", shutting down...")
		case <-trigger:
			slog.Warn("Shutdown requested, shutting down...")
		case <-ctx.Done():
		}

		RunHooks()
	}()

	return ctx
}

// RunHooks runs and forgets every registered hook.
func RunHooks() {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	for _, h := range pending {
		h()
	}
}
