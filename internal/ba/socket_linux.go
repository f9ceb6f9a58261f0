//go:build linux

package ba

import (
	"fmt"
	"net"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// hciGetDevInfo is HCIGETDEVINFO, _IOR('H', 211, int), from <linux/hci.h>.
const hciGetDevInfo = 0x800448D3

// BT_VOICE socket option and the "transparent" (wideband/mSBC) setting, from
// <bluetooth/bluetooth.h>.
const (
	btVoice            = 11
	btVoiceTransparent = 0x0003
)

// hciDevInfoRaw mirrors struct hci_dev_info from <linux/hci.h>; only the
// fields this package reads are named. The stats tail (struct
// hci_dev_stats, ten __u32 counters) is unnamed padding, so the kernel's
// copy fits, and is left unread.
type hciDevInfoRaw struct {
	DevID      uint16
	Name       [8]byte
	Bdaddr     [6]byte
	Flags      uint32
	Type       uint8
	Features   [8]byte
	_          [3]byte
	PktType    uint32
	LinkPolicy uint32
	LinkMode   uint32
	ACLMtu     uint16
	ACLPkts    uint16
	SCOMtu     uint16
	SCOPkts    uint16
	_          [40]byte
}

// hciDevBdaddr resolves the local controller address for devID through
// HCIGETDEVINFO on a transient raw HCI socket, the ioctl libbluetooth's
// hci_devinfo()/hci_devba() wrap and which hci_open_sco needs before it can
// bind the SCO socket to the right controller (ba-transport.c,
// transport_acquire_bt_sco).
func hciDevBdaddr(devID int) ([6]byte, error) {
	var zero [6]byte

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return zero, fmt.Errorf("hci socket: %w", err)
	}
	defer unix.Close(fd)

	info := hciDevInfoRaw{DevID: uint16(devID)}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(hciGetDevInfo), uintptr(unsafe.Pointer(&info))); errno != 0 {
		return zero, fmt.Errorf("HCIGETDEVINFO: %w", errno)
	}

	return info.Bdaddr, nil
}

// scoSockaddr packs a struct sockaddr_sco (sa_family_t + bdaddr_t, no
// channel field) for the raw bind/connect calls below; x/sys/unix has no
// typed Sockaddr for AF_BLUETOOTH address families.
func scoSockaddr(addr [6]byte) []byte {
	buf := make([]byte, 8)
	buf[0] = byte(unix.AF_BLUETOOTH)
	buf[1] = byte(unix.AF_BLUETOOTH >> 8)
	copy(buf[2:], addr[:])
	return buf
}

func rawBind(fd int, sa []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(unsafe.Pointer(&sa[0])), uintptr(len(sa)))
	if errno != 0 {
		return errno
	}
	return nil
}

func rawConnect(fd int, sa []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&sa[0])), uintptr(len(sa)))
	if errno != 0 {
		return errno
	}
	return nil
}

func rawSetsockopt(fd, level, opt int, val []byte) error {
	_, _, errno := unix.Syscall6(unix.SYS_SETSOCKOPT, uintptr(fd), uintptr(level), uintptr(opt),
		uintptr(unsafe.Pointer(&val[0])), uintptr(len(val)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// tuneA2DPSocket shrinks the kernel send buffer to 3x the write MTU and
// samples the initial send-queue occupancy, exactly as
// transport_acquire_bt_a2dp does right after Acquire (ba-transport.c):
//
//	size_t size = t->mtu_write * 3;
//	setsockopt(t->bt_fd, SOL_SOCKET, SO_SNDBUF, &size, sizeof(size));
//	ioctl(t->bt_fd, TIOCOUTQ, &t->a2dp.bt_fd_coutq_init);
func tuneA2DPSocket(t *Transport, rawFd int) {
	size := int(t.MTUWrite) * 3
	if err := unix.SetsockoptInt(rawFd, unix.SOL_SOCKET, unix.SO_SNDBUF, size); err != nil {
		t.env.Log.Warn("couldn't set socket output buffer size", "transport", t.Type, "err", err)
	}

	var queued int
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(rawFd), uintptr(unix.TIOCOUTQ), uintptr(unsafe.Pointer(&queued))); errno != 0 {
		t.env.Log.Warn("couldn't get socket queued bytes", "transport", t.Type, "err", errno)
		return
	}

	t.mu.Lock()
	if t.A2DP != nil {
		t.A2DP.btSendQueueInit = queued
	}
	t.mu.Unlock()
}

// acquireSCO implements spec.md §4.5: open a raw SCO link to the device over
// the adapter's controller, request the wideband (mSBC) voice setting for
// any codec other than CVSD, and override both MTUs to the configured
// Tunables.MTUOverride since the kernel-reported values are not trustworthy
// (ba-transport.c, transport_acquire_bt_sco).
func (t *Transport) acquireSCO() error {
	t.mu.Lock()
	if t.socket != nil {
		t.mu.Unlock()
		t.env.Log.Debug("reusing acquired transport", "transport", t.Type)
		return nil
	}
	devID := t.Device.Adapter.HCIDevID
	dst := t.Device.Addr
	wideband := t.Type.HFP != HFPCodecCVSD
	t.mu.Unlock()

	local, err := hciDevBdaddr(devID)
	if err != nil {
		return newErr(ErrSocketIO, "acquireSCO", err)
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_SCO)
	if err != nil {
		return newErr(ErrSocketIO, "acquireSCO", err)
	}

	if err := rawBind(fd, scoSockaddr(local)); err != nil {
		unix.Close(fd)
		return newErr(ErrSocketIO, "acquireSCO", err)
	}

	if wideband {
		setting := []byte{byte(btVoiceTransparent), byte(btVoiceTransparent >> 8)}
		if err := rawSetsockopt(fd, unix.SOL_BLUETOOTH, btVoice, setting); err != nil {
			t.env.Log.Warn("couldn't set wideband voice setting", "transport", t.Type, "err", err)
		}
	}

	if err := rawConnect(fd, scoSockaddr(dst)); err != nil {
		unix.Close(fd)
		return newErr(ErrSocketIO, "acquireSCO", err)
	}

	conn, err := wrapSocketFd(fd)
	if err != nil {
		return newErr(ErrSocketIO, "acquireSCO", err)
	}

	mtu := t.env.Tunables.MTUOverride
	if mtu == 0 {
		mtu = defaultSCOMTUOverride
	}

	t.mu.Lock()
	t.socket = conn
	t.rawFd = fd
	t.MTURead = mtu
	t.MTUWrite = mtu
	t.mu.Unlock()

	t.env.Log.Debug("new SCO link acquired", "transport", t.Type, "mtu", mtu)
	return nil
}

// releaseSCO implements the release half of spec.md §4.5.
func (t *Transport) releaseSCO() error {
	t.mu.Lock()
	if t.socket == nil {
		t.mu.Unlock()
		return nil
	}
	sock := t.socket
	t.mu.Unlock()

	t.env.Log.Debug("closing SCO link", "transport", t.Type)
	shutdownRDWR(sock)
	err := sock.Close()

	t.mu.Lock()
	t.socket = nil
	t.rawFd = -1
	t.mu.Unlock()

	return err
}

// shutdownRDWR half-closes a socket before Close, matching
// shutdown(fd, SHUT_RDWR) in transport_release_bt_rfcomm/
// transport_release_bt_sco. Conn implementations that do not expose their
// raw descriptor (anything other than a genuine socket) are left alone.
func shutdownRDWR(conn net.Conn) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.Shutdown(int(fd), unix.SHUT_RDWR)
	})
}
