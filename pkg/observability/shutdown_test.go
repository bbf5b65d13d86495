package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitAndSignal(t *testing.T, sm *ShutdownManager) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- sm.WaitForShutdown() }()

	// Give signal.Notify a moment to install before raising.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
		return nil
	}
}

func TestShutdownRunsRegisteredFuncs(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, time.Second)

	var ran atomic.Int32
	sm.RegisterShutdownFunc(func(context.Context) error {
		ran.Add(1)
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NoError(t, waitAndSignal(t, sm))
	assert.Equal(t, int32(2), ran.Load())
}

func TestShutdownCollectsErrors(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, time.Second)

	sm.RegisterShutdownFunc(func(context.Context) error {
		return errors.New("redis close failed")
	})

	err := waitAndSignal(t, sm)
	assert.ErrorContains(t, err, "1 errors")
}

func TestShutdownTimeout(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	sm := NewShutdownManager(logger, nil, 100*time.Millisecond)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	})

	err := waitAndSignal(t, sm)
	assert.ErrorContains(t, err, "timeout")
}

func TestShutdownStopsHTTPServer(t *testing.T) {
	logger := NewLogger(ErrorLevel, io.Discard)
	server := &http.Server{Addr: "127.0.0.1:0"}

	sm := NewShutdownManager(logger, server, time.Second)
	require.NoError(t, waitAndSignal(t, sm))

	// Shutdown on an unstarted server is a no-op but must not error.
	assert.ErrorIs(t, server.ListenAndServe(), http.ErrServerClosed)
}

func TestDefaultTimeoutApplied(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, io.Discard), nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
}
