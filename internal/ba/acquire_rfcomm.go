package ba

import "context"

// releaseRFCOMM implements spec.md §4.6. If the socket is not open, it
// succeeds silently (and, per the original implementation, does not
// re-trigger a free — only a transport that still held an open socket
// needs the forced teardown below). Otherwise it half-closes and closes
// the socket, then frees the parent RFCOMM transport entirely, because
// BlueZ does not deliver a disconnection signal on link loss and the path
// key must be free for the next reconnection.
func (t *Transport) releaseRFCOMM(ctx context.Context) error {
	t.mu.Lock()
	sock := t.socket
	handle := t.worker
	t.mu.Unlock()

	if sock == nil {
		return nil
	}

	t.env.Log.Debug("closing RFCOMM socket", "transport", t.Type)
	shutdownRDWR(sock)
	err := sock.Close()

	t.mu.Lock()
	t.socket = nil
	t.rawFd = -1
	t.mu.Unlock()

	// Free() is reentrant-safe: if this call originated from inside Free()
	// itself (normal teardown), state is already LIMBO and this is a no-op.
	// If it originated from the worker's own cleanup after a link-loss read
	// error, this is what actually tears the transport down — but calling
	// it synchronously here would deadlock: Free() would call cancelAndJoin
	// on this very goroutine's handle and block on a done channel that only
	// closes once this call returns (ba-transport.c's
	// transport_pthread_cancel guards against the equivalent case with
	// pthread_equal). Hand teardown to a fresh goroutine instead whenever
	// we're running on the worker's own goroutine.
	if isSelf(ctx, handle) {
		go t.Free()
	} else {
		t.Free()
	}

	return err
}
