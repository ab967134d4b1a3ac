package shutdown

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for shutdown")
	}
}

//nolint:paralleltest // uses package-level hooks
func TestRunHooks(t *testing.T) {
	var called atomic.Int32

	BeforeShutdown(func() { called.Add(1) })
	BeforeShutdown(func() { called.Add(10) })

	RunHooks()
	RunHooks()

	assert.Equal(t, int32(11), called.Load())
}

//nolint:paralleltest // uses package-level hooks and the trigger channel
func TestShutdownRunsHooksBeforeCancel(t *testing.T) {
	ctx := SetupHandler(context.Background())

	var sawLiveContext atomic.Bool

	BeforeShutdown(func() {
		sawLiveContext.Store(ctx.Err() == nil)
	})

	Shutdown()
	waitDone(t, ctx)

	assert.True(t, sawLiveContext.Load())
}

//nolint:paralleltest // sends a signal to the test process
func TestSignal(t *testing.T) {
	ctx := SetupHandler(context.Background())

	var called atomic.Bool

	BeforeShutdown(func() { called.Store(true) })

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
	waitDone(t, ctx)

	assert.True(t, called.Load())
}

//nolint:paralleltest // uses package-level hooks
func TestParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())

	ctx := SetupHandler(parent)

	cancel()
	waitDone(t, ctx)
}
