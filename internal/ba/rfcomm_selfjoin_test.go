package ba

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRFCOMMWorkerLinkLossDoesNotSelfJoinDeadlock exercises spec.md §4.6 /
// §5's link-loss teardown path against a real net.Conn: the worker's own
// read error drives it straight into workerCleanup -> releaseRFCOMM -> Free,
// all on the worker's own goroutine. Free's cancelAndJoin must not block
// forever waiting on a done channel that only this same goroutine can
// close (the self-join deadlock releaseRFCOMM's isSelf branch exists to
// avoid).
func TestRFCOMMWorkerLinkLossDoesNotSelfJoinDeadlock(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewRFCOMMTransport(env, dev, ProfileHFPAG, "org.bluez", "/test/selfjoin")
	require.NoError(t, err)
	drainEvents(sink)

	local, remote := net.Pipe()
	require.NoError(t, remote.Close()) // the link is already gone

	tr.mu.Lock()
	tr.socket = local
	tr.mu.Unlock()

	require.NoError(t, tr.SetState(context.Background(), StateActive))

	// The worker's first read fails immediately (remote end closed), driving
	// it through release -> Free on its own goroutine. Setting Transport.state
	// to LIMBO happens before the old buggy code's blocking cancelAndJoin
	// call, so checking state alone can't distinguish "freed" from "wedged
	// mid-Free forever" — what a genuine wedge actually prevents is
	// Free()'s tail finishing (device.removeTransport), which is what frees
	// the path key for a new connection (spec.md §4.6: "BlueZ does not
	// deliver a disconnection signal on link loss and the path key must be
	// free for the next reconnection"). Poll for that instead of hanging
	// the test directly on it.
	deadline := time.Now().Add(2 * time.Second)
	var reErr error
	var fresh *Transport
	for time.Now().Before(deadline) {
		fresh, reErr = NewRFCOMMTransport(env, dev, ProfileHFPAG, "org.bluez", "/test/selfjoin")
		if reErr == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, reErr, "old transport's path was never freed; worker is wedged on a self-join")
	fresh.Free()
}
