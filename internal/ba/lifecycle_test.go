package ba

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetStateSameStateIsNoop(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewA2DPTransport(env, dev, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", "/test/noop", nil)
	require.NoError(t, err)
	drainEvents(sink)

	require.NoError(t, tr.SetState(context.Background(), StateIdle))
	require.Equal(t, StateIdle, tr.State())
	require.Nil(t, tr.worker)
}

func TestA2DPSinkIdleGuardBlocksNonPendingTarget(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewA2DPTransport(env, dev, ProfileA2DPSink, A2DPCodecSBC, "org.bluez", "/test/sinkguard", nil)
	require.NoError(t, err)
	drainEvents(sink)

	require.NoError(t, tr.SetState(context.Background(), StateActive))
	require.Equal(t, StateIdle, tr.State())
	require.Nil(t, tr.worker)
}

func TestActiveToIdleRoundTripSpawnsAndJoinsWorker(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewRFCOMMTransport(env, dev, ProfileHFPAG, "org.bluez", "/test/lifecycle")
	require.NoError(t, err)
	drainEvents(sink)

	require.NoError(t, tr.SetState(context.Background(), StateActive))
	require.Equal(t, StateActive, tr.State())

	tr.mu.Lock()
	handle := tr.worker
	tr.mu.Unlock()
	require.NotNil(t, handle)

	require.NoError(t, tr.SetState(context.Background(), StateIdle))
	require.Equal(t, StateIdle, tr.State())

	// SetState(Idle) calls cancelAndJoin before clearing the handle, so by
	// the time it returns the worker goroutine has already exited.
	tr.mu.Lock()
	handle = tr.worker
	tr.mu.Unlock()
	require.Nil(t, handle)
}

func TestSetStatePausedAlsoSpawnsWorker(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewSCOTransport(env, dev, ProfileHFPAG, HFPCodecMSBC, "org.bluez", "/test/paused")
	require.NoError(t, err)
	drainEvents(sink)

	require.NoError(t, tr.SetState(context.Background(), StatePaused))
	require.Equal(t, StatePaused, tr.State())

	tr.mu.Lock()
	handle := tr.worker
	tr.mu.Unlock()
	require.NotNil(t, handle)

	tr.Free()
}

func TestFreeCancelsRunningWorker(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewSCOTransport(env, dev, ProfileHFPAG, HFPCodecMSBC, "org.bluez", "/test/freecancel")
	require.NoError(t, err)
	drainEvents(sink)

	require.NoError(t, tr.SetState(context.Background(), StateActive))
	tr.Free()

	require.Equal(t, StateLimbo, tr.State())
	tr.mu.Lock()
	handle := tr.worker
	tr.mu.Unlock()
	require.Nil(t, handle)
}
