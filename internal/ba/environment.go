package ba

import (
	"time"

	"github.com/charmbracelet/log"
	dbus "github.com/godbus/dbus/v5"
)

// defaultSCOMTUOverride is the hard-coded SCO socket MTU used instead of
// whatever value the kernel HCI interface reports. The values returned by
// the SCO socket's getsockopt(SO_RCVBUF)-adjacent ioctl appear to be wrong
// on every kernel this was tested against; 48 bytes is what bluez-alsa has
// shipped with for years. It stays adjustable through Tunables.MTUOverride
// rather than being a bare literal buried in socket_linux.go (spec.md
// Design Notes, "Open question — MTU override for SCO").
const defaultSCOMTUOverride = 48

// Tunables holds the operator-configurable knobs spec.md calls out as
// workarounds that must stay visible and adjustable rather than hard-coded.
type Tunables struct {
	// DrainSettleDelay is the fixed sleep after a drain handshake completes,
	// because neither BlueZ nor the A2DP/SCO profiles expose an end-of-stream
	// signal. Default 200ms (spec.md §4.10); do not shorten silently.
	DrainSettleDelay time.Duration
	// PCMDir is the directory under which PCM endpoint FIFOs are created.
	PCMDir string
	// MTUOverride replaces the kernel-reported SCO socket MTU, since it is
	// not trustworthy on any tested kernel (ba-transport.c,
	// transport_acquire_bt_sco). Defaults to 48; an operator-set value of 0
	// is treated as "use the default" rather than "disable the override".
	MTUOverride uint16
}

// DefaultTunables returns the values the original implementation hard-coded.
func DefaultTunables() Tunables {
	return Tunables{
		DrainSettleDelay: 200 * time.Millisecond,
		PCMDir:           "/tmp/bluealsad",
		MTUOverride:      defaultSCOMTUOverride,
	}
}

// Environment is the shared context threaded explicitly through every
// constructor in this package, instead of relying on process-wide globals
// (spec.md Design Notes, "Global configuration ... Thread it explicitly
// through constructors as a shared environment rather than a process-wide
// singleton").
type Environment struct {
	Bus      *dbus.Conn
	Log      *log.Logger
	Sink     EventSink
	Tunables Tunables
}

// NewEnvironment builds an Environment from an already-connected bus. A nil
// logger/sink/tunables are replaced with sane defaults so tests can build a
// minimal Environment with only a bus (or no bus, for non-acquiring tests).
func NewEnvironment(bus *dbus.Conn, logger *log.Logger, sink EventSink, tunables *Tunables) *Environment {
	if logger == nil {
		logger = NewLogger()
	}
	if sink == nil {
		sink = NewChanEventSink(16)
	}
	t := DefaultTunables()
	if tunables != nil {
		t = *tunables
		if t.MTUOverride == 0 {
			t.MTUOverride = defaultSCOMTUOverride
		}
	}
	return &Environment{Bus: bus, Log: logger, Sink: sink, Tunables: t}
}
