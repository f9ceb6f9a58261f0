package ba

import (
	"context"
	"net"
	"os"

	dbus "github.com/godbus/dbus/v5"
)

const mediaTransportIface = "org.bluez.MediaTransport1"

// acquireA2DP implements spec.md §4.4. If the socket is already open it is
// reused (keep-alive mode). Otherwise it calls TryAcquire (while PENDING)
// or Acquire (otherwise) on the daemon bus, shrinks the socket send buffer
// to 3x the write MTU, and samples the kernel send-queue occupancy.
func (t *Transport) acquireA2DP(ctx context.Context) error {
	t.mu.Lock()
	if t.socket != nil {
		t.mu.Unlock()
		t.env.Log.Debug("reusing acquired transport", "transport", t.Type)
		return nil
	}
	state := t.state
	t.mu.Unlock()

	method := "Acquire"
	if state == StatePending {
		method = "TryAcquire"
	}

	obj := t.env.Bus.Object(t.DBusOwner, dbus.ObjectPath(t.DBusPath))
	call := obj.CallWithContext(ctx, mediaTransportIface+"."+method, 0)
	if call.Err != nil {
		t.env.Log.Error("acquire failed", "transport", t.Type, "method", method, "err", call.Err)
		return newErr(ErrIPCTransient, "acquireA2DP", call.Err)
	}

	var fd dbus.UnixFD
	var readMTU, writeMTU uint16
	if err := call.Store(&fd, &readMTU, &writeMTU); err != nil {
		return newErr(ErrIPCTransient, "acquireA2DP", err)
	}

	rawFd := int(fd)

	t.mu.Lock()
	t.MTURead = readMTU
	t.MTUWrite = writeMTU
	t.mu.Unlock()

	// Tune while rawFd is still open: wrapSocketFd closes it once
	// net.FileConn has taken its own duplicate.
	tuneA2DPSocket(t, rawFd)

	conn, err := wrapSocketFd(rawFd)
	if err != nil {
		_ = os.NewFile(uintptr(rawFd), "bt").Close()
		return newErr(ErrIPCTransient, "acquireA2DP", err)
	}

	t.mu.Lock()
	t.socket = conn
	t.rawFd = rawFd
	t.mu.Unlock()

	t.env.Log.Debug("new A2DP transport acquired", "transport", t.Type, "mtu_read", readMTU, "mtu_write", writeMTU)
	return nil
}

// releaseA2DP implements spec.md §4.4. If the socket is not open it
// succeeds silently. Otherwise, only if state != IDLE and the owner is
// known, it sends Release; "no reply" and "service unknown" replies are
// tolerated (the daemon may already be gone).
func (t *Transport) releaseA2DP() error {
	t.mu.Lock()
	if t.socket == nil {
		t.mu.Unlock()
		return nil
	}
	state := t.state
	owner := t.DBusOwner
	path := t.DBusPath
	sock := t.socket
	t.mu.Unlock()

	var peerGone error
	if state != StateIdle && owner != "" {
		obj := t.env.Bus.Object(owner, dbus.ObjectPath(path))
		call := obj.Call(mediaTransportIface+".Release", 0)
		if call.Err != nil {
			if isPeerGoneDBusErr(call.Err) {
				t.env.Log.Debug("release: daemon already gone", "transport", t.Type)
				peerGone = newErr(ErrIPCPeerGone, "releaseA2DP", call.Err)
			} else {
				t.env.Log.Error("release failed", "transport", t.Type, "err", call.Err)
				// Still close our side; the socket is ours to free either way.
			}
		}
	}

	t.env.Log.Debug("closing A2DP socket", "transport", t.Type)
	closeErr := sock.Close()

	t.mu.Lock()
	t.socket = nil
	t.rawFd = -1
	t.mu.Unlock()

	if peerGone != nil {
		return peerGone
	}
	return closeErr
}

// isPeerGoneDBusErr reports whether err is a D-Bus "no reply"/"service
// unknown" error, which spec.md §4.4/§7 say must be suppressed rather than
// surfaced, since the daemon may already have exited.
func isPeerGoneDBusErr(err error) bool {
	dbusErr, ok := err.(dbus.Error)
	if !ok {
		return false
	}
	switch dbusErr.Name {
	case "org.freedesktop.DBus.Error.NoReply", "org.freedesktop.DBus.Error.ServiceUnknown":
		return true
	default:
		return false
	}
}

// wrapSocketFd adopts a raw file descriptor handed to us over D-Bus as a
// net.Conn, so worker loops get SetReadDeadline/SetWriteDeadline for
// cancellation-point polling (spec.md §5) instead of raw blocking IO.
func wrapSocketFd(fd int) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), "bt-transport")
	conn, err := net.FileConn(f)
	// FileConn dups the descriptor; our copy must still be closed.
	_ = f.Close()
	if err != nil {
		return nil, err
	}
	return conn, nil
}
