package ba

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// a2dpState is the A2DP-profile-specific sub-state of a Transport
// (spec.md §3).
type a2dpState struct {
	CConfig []byte // codec capability blob, may be zero-length

	Ch1Volume int // 0-127
	Ch2Volume int // 0-127

	PCM *PCMEndpoint

	drainMu   sync.Mutex
	drainCond *sync.Cond

	// btSendQueueInit is the kernel send-queue occupancy sampled right
	// after acquire, for flow-control bookkeeping (spec.md §4.4).
	btSendQueueInit int
}

// scoState is the SCO-profile-specific sub-state of a Transport
// (spec.md §3).
type scoState struct {
	SpeakerPCM *PCMEndpoint
	MicPCM     *PCMEndpoint

	spkDrainMu   sync.Mutex
	spkDrainCond *sync.Cond

	SpeakerGain int // 0-15
	MicGain     int // 0-15

	// rfcommBack is a non-owning back-reference to the parent RFCOMM
	// transport, cleared by the child's own destructor before the parent
	// finishes freeing it (spec.md §3, §4.7, §9).
	rfcommBack *Transport
}

// rfcommState is the RFCOMM-profile-specific sub-state of a Transport
// (spec.md §3). RFCOMM owns its SCO child outright.
type rfcommState struct {
	SCO *Transport
}

// Transport is the central entity of the package: one Bluetooth media or
// voice channel, with its socket, codec config, PCM endpoint(s), worker and
// lifecycle state (spec.md §3).
type Transport struct {
	Device    *Device
	Type      Type
	DBusOwner string
	DBusPath  string

	env *Environment

	mu    sync.Mutex
	state State

	socket   net.Conn
	rawFd    int // -1 when not acquired; mirrored by socket == nil
	MTURead  uint16
	MTUWrite uint16

	sig    signalPipe
	worker *workerHandle

	// cleanupHeld tracks whether the destructor currently holds mu across a
	// worker-cleanup handoff, so unlock stays idempotent (spec.md §5).
	cleanupHeld bool

	A2DP   *a2dpState
	SCO    *scoState
	RFCOMM *rfcommState
}

// newTransport is the generic constructor shared by all three
// specializations (spec.md §4.1). It allocates the transport, sets state
// IDLE, creates the signalling channel, and inserts itself into the
// device's transport map keyed on path. If the path is already taken,
// nothing has been registered or allocated, so Free is not run; a
// resource-exhaustion error is returned.
func newTransport(env *Environment, device *Device, typ Type, owner, path string) (*Transport, error) {
	t := &Transport{
		Device:    device,
		Type:      typ,
		DBusOwner: owner,
		DBusPath:  path,
		env:       env,
		state:     StateIdle,
		rawFd:     -1,
		sig:       newSignalPipe(),
	}

	if err := device.insertTransport(path, t); err != nil {
		return nil, newErr(ErrResourceExhaustion, "newTransport", err)
	}

	return t, nil
}

// NewA2DPTransport constructs an A2DP source or sink transport (spec.md
// §4.1). cconfig may be empty (zero-length capability blob).
func NewA2DPTransport(env *Environment, device *Device, profile Profile, codec A2DPCodec, owner, path string, cconfig []byte) (*Transport, error) {
	typ := Type{Profile: profile, A2DP: codec}
	t, err := newTransport(env, device, typ, owner, path)
	if err != nil {
		return nil, err
	}

	cfg := make([]byte, len(cconfig))
	copy(cfg, cconfig)

	a := &a2dpState{
		CConfig:   cfg,
		Ch1Volume: 127,
		Ch2Volume: 127,
		PCM:       NewPCMEndpoint(env.Tunables.PCMDir, pcmName(device, path, "a2dp"), a2dpPCMDirection(profile)),
	}
	a.drainCond = sync.NewCond(&a.drainMu)
	t.A2DP = a

	stream := PCMStreamCapture
	if profile == ProfileA2DPSource {
		stream = PCMStreamPlayback
	}
	env.Sink.Emit(Event{Kind: EventTransportAdded, Addr: device.Addr, PCMKind: PCMKindA2DP, Stream: stream})

	return t, nil
}

func a2dpPCMDirection(profile Profile) PCMDirection {
	if profile == ProfileA2DPSource {
		return PCMPlayback
	}
	return PCMCapture
}

// NewSCOTransport constructs a SCO transport (spec.md §4.1). If profile
// belongs to the HSP family, the codec is forced to CVSD: HSP supports
// only the mandatory narrowband codec.
func NewSCOTransport(env *Environment, device *Device, profile Profile, codec HFPCodec, owner, path string) (*Transport, error) {
	if profile&ProfileMaskHSP != 0 {
		codec = HFPCodecCVSD
	}
	typ := Type{Profile: profile, HFP: codec}
	t, err := newTransport(env, device, typ, owner, path)
	if err != nil {
		return nil, err
	}

	s := &scoState{
		SpeakerPCM:  NewPCMEndpoint(env.Tunables.PCMDir, pcmName(device, path, "spk"), PCMPlayback),
		MicPCM:      NewPCMEndpoint(env.Tunables.PCMDir, pcmName(device, path, "mic"), PCMCapture),
		SpeakerGain: 15,
		MicGain:     15,
	}
	s.spkDrainCond = sync.NewCond(&s.spkDrainMu)
	t.SCO = s

	env.Sink.Emit(Event{
		Kind:    EventTransportAdded,
		Addr:    device.Addr,
		PCMKind: PCMKindSCO,
		Stream:  PCMStreamPlayback | PCMStreamCapture,
	})

	return t, nil
}

// NewRFCOMMTransport constructs an RFCOMM transport together with its
// dependent SCO child, whose daemon path is the parent's with "/sco"
// appended (spec.md §4.1). The RFCOMM transport itself emits no event; its
// child SCO does.
func NewRFCOMMTransport(env *Environment, device *Device, profile Profile, owner, path string) (*Transport, error) {
	ttype := Type{Profile: profile | ProfileRFCOMM}
	t, err := newTransport(env, device, ttype, owner, path)
	if err != nil {
		return nil, err
	}

	scoPath := path + "/sco"
	scoT, err := NewSCOTransport(env, device, profile, HFPCodecUndefined, owner, scoPath)
	if err != nil {
		t.Free()
		return nil, err
	}

	t.RFCOMM = &rfcommState{SCO: scoT}
	scoT.SCO.rfcommBack = t

	return t, nil
}

func pcmName(d *Device, path, suffix string) string {
	return fmt.Sprintf("%s-%s-%s.pcm", d.String(), sanitizePath(path), suffix)
}

func sanitizePath(path string) string {
	out := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}

// State returns the transport's current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Free is the transport destructor (spec.md §4.7). It is reentrant-safe:
// calling it again once state is LIMBO is a no-op.
func (t *Transport) Free() {
	t.mu.Lock()
	if t.state == StateLimbo {
		t.mu.Unlock()
		return
	}
	t.state = StateLimbo
	handle := t.worker
	t.worker = nil
	t.mu.Unlock()

	cancelAndJoin(handle)

	if err := t.release(context.Background()); err != nil && !IsPeerGone(err) {
		t.env.Log.Warn("release failed during free", "transport", t.Type, "err", err)
	}

	t.mu.Lock()
	if t.socket != nil {
		_ = t.socket.Close()
		t.socket = nil
		t.rawFd = -1
	}
	t.mu.Unlock()

	suppressEvent := false
	pcmKind := PCMKind(0)
	stream := PCMStream(0)

	switch {
	case t.Type.Profile&ProfileRFCOMM != 0:
		t.Device.zeroMetadata()
		if t.RFCOMM != nil && t.RFCOMM.SCO != nil {
			t.RFCOMM.SCO.Free()
		}
		suppressEvent = true

	case t.Type.Profile&ProfileMaskSCO != 0:
		pcmKind, stream = PCMKindSCO, PCMStreamPlayback|PCMStreamCapture
		if t.SCO != nil {
			_ = t.SCO.SpeakerPCM.Close()
			_ = t.SCO.MicPCM.Close()
			if t.SCO.rfcommBack != nil {
				t.SCO.rfcommBack.mu.Lock()
				if t.SCO.rfcommBack.RFCOMM != nil {
					t.SCO.rfcommBack.RFCOMM.SCO = nil
				}
				t.SCO.rfcommBack.mu.Unlock()
				t.SCO.rfcommBack = nil
			}
		}

	case t.Type.Profile&ProfileMaskA2DP != 0:
		pcmKind = PCMKindA2DP
		if t.Type.Profile == ProfileA2DPSource {
			stream = PCMStreamPlayback
		} else {
			stream = PCMStreamCapture
		}
		if t.A2DP != nil {
			_ = t.A2DP.PCM.Close()
			t.A2DP.CConfig = nil
		}
	}

	t.Device.removeTransport(t.DBusPath)

	if !suppressEvent {
		t.env.Sink.Emit(Event{Kind: EventTransportRemoved, Addr: t.Device.Addr, PCMKind: pcmKind, Stream: stream})
	}
}
