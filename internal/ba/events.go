package ba

// EventKind distinguishes a transport birth from a transport death
// (spec.md §4.11).
type EventKind int

const (
	EventTransportAdded EventKind = iota
	EventTransportRemoved
)

func (k EventKind) String() string {
	if k == EventTransportAdded {
		return "TRANSPORT_ADDED"
	}
	return "TRANSPORT_REMOVED"
}

// Event is the record the local control channel exchanges (spec.md §6):
// kind, peer address, and the PCM type mask, carried as two separate
// fields: PCMKind holds the kind bits (A2DP/SCO) and Stream the direction
// bits (playback/capture).
type Event struct {
	Kind    EventKind
	Addr    [6]byte
	PCMKind PCMKind
	Stream  PCMStream
}

// EventSink is the local control/event consumer interface. RFCOMM
// transports never call Emit; their child SCO transport does (spec.md
// §4.1, §4.11).
type EventSink interface {
	Emit(Event)
}

// ChanEventSink delivers events over a buffered channel, in per-transport
// FIFO order, matching the teacher's channel-delivery idiom for
// asynchronously produced results (internal/connmgr's profile.ch pattern in
// mgr_linux.go).
type ChanEventSink struct {
	events chan Event
}

// NewChanEventSink creates a sink with the given channel buffer depth. A
// full buffer causes Emit to drop the event rather than block the
// controller goroutine that produced it; callers that need backpressure
// should drain Events promptly.
func NewChanEventSink(buffer int) *ChanEventSink {
	return &ChanEventSink{events: make(chan Event, buffer)}
}

// Emit delivers ev, dropping it if the channel buffer is full.
func (s *ChanEventSink) Emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Events returns the receive side for a consumer loop (e.g. cmd/bluealsad's
// daemon loop).
func (s *ChanEventSink) Events() <-chan Event {
	return s.events
}
