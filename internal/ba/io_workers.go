package ba

import (
	"context"
	"io"
	"sync"
	"time"
)

// pollInterval bounds how long a worker blocks on a single read/write
// attempt before re-checking ctx/the signalling channel — the Go stand-in
// for poll(2)'s timeout argument (spec.md §4.8, §5, Design Notes).
const pollInterval = 200 * time.Millisecond

// runA2DPSourceSBC reads PCM from the local playback endpoint, (in a real
// build) hands it to the SBC encoder, and writes the encoded frames to the
// Bluetooth socket. Encoding itself is out of scope (spec.md §1): this loop
// only owns the plumbing around it.
func (t *Transport) runA2DPSourceSBC(ctx context.Context) {
	t.runA2DPSource(ctx, encodeSBC)
}

func (t *Transport) runA2DPSourceAAC(ctx context.Context) {
	t.runA2DPSource(ctx, encodeAAC)
}

func (t *Transport) runA2DPSourceAptX(ctx context.Context) {
	t.runA2DPSource(ctx, encodeAptX)
}

func (t *Transport) runA2DPSourceLDAC(ctx context.Context) {
	t.runA2DPSource(ctx, encodeLDAC)
}

func (t *Transport) runA2DPSinkSBC(ctx context.Context) {
	t.runA2DPSink(ctx, decodeSBCFrame)
}

func (t *Transport) runA2DPSinkAAC(ctx context.Context) {
	t.runA2DPSink(ctx, decodeAACFrame)
}

// encodeFunc turns raw PCM into codec frames sized to the socket MTU.
// The real codecs are out of scope (spec.md §1); these are thin seams a
// concrete build links against.
type encodeFunc func(pcm []byte, mtu int) []byte

// decodeFunc turns codec frames read off the socket back into PCM.
type decodeFunc func(frame []byte) []byte

func encodeSBC(pcm []byte, mtu int) []byte  { return passthroughCodec(pcm, mtu) }
func encodeAAC(pcm []byte, mtu int) []byte  { return passthroughCodec(pcm, mtu) }
func encodeAptX(pcm []byte, mtu int) []byte { return passthroughCodec(pcm, mtu) }
func encodeLDAC(pcm []byte, mtu int) []byte { return passthroughCodec(pcm, mtu) }

func decodeSBCFrame(frame []byte) []byte { return frame }
func decodeAACFrame(frame []byte) []byte { return frame }

// passthroughCodec is the seam a real encoder plugs into; it truncates to
// mtu so the plumbing above it is exercisable without a concrete codec.
func passthroughCodec(pcm []byte, mtu int) []byte {
	if mtu > 0 && len(pcm) > mtu {
		return pcm[:mtu]
	}
	return pcm
}

// pausedWait blocks while the transport sits in PAUSED, polling at
// pollInterval so a concurrent SetState(ACTIVE) is noticed promptly without
// busy-spinning (spec.md §3: PAUSED is "worker running, deliberately not
// producing/consuming", not a worker teardown). Returns false if ctx ended
// while waiting, in which case the caller's loop should exit.
func (t *Transport) pausedWait(ctx context.Context) bool {
	for t.State() == StatePaused {
		if !sleepOrDone(ctx, pollInterval) {
			return false
		}
	}
	return ctx.Err() == nil
}

// runA2DPSource is the shared A2DP-source IO loop: read from the local
// playback PCM endpoint, encode, write to the Bluetooth socket, and signal
// the drain condvar once both buffers are empty (spec.md §4.10).
func (t *Transport) runA2DPSource(ctx context.Context, encode encodeFunc) {
	a := t.A2DP
	buf := make([]byte, 4096)

	for ctx.Err() == nil {
		if !t.pausedWait(ctx) {
			return
		}

		f, err := a.PCM.Open()
		if err != nil {
			if !sleepOrDone(ctx, 10*time.Millisecond) {
				return
			}
			continue
		}

		n, readErr := readWithDeadline(ctx, f, buf, pollInterval)
		if n > 0 {
			frame := encode(buf[:n], int(t.MTURead))
			if _, err := writeWithDeadline(ctx, t.socket, frame, pollInterval); err != nil {
				t.env.Log.Warn("a2dp source write failed", "transport", t.Type, "err", err)
				return
			}
		}

		if readErr != nil && readErr != errTimedOut {
			_ = a.PCM.Close()
			if readErr == io.EOF {
				// Client disconnected: nothing is buffered, so answer a
				// pending drain request before waiting for a new one.
				t.drainIfRequested(a.drainCond)
				continue
			}
		}

		t.drainIfRequested(a.drainCond)
	}
}

// runA2DPSink is the shared A2DP-sink IO loop: read frames from the
// Bluetooth socket, decode, and write PCM to the local capture endpoint.
func (t *Transport) runA2DPSink(ctx context.Context, decode decodeFunc) {
	a := t.A2DP
	buf := make([]byte, int(t.MTURead)+1)
	if len(buf) < 2 {
		buf = make([]byte, 4096)
	}

	for ctx.Err() == nil {
		if !t.pausedWait(ctx) {
			return
		}

		n, err := readWithDeadline(ctx, t.socket, buf, pollInterval)
		if n > 0 {
			pcm := decode(buf[:n])
			f, openErr := a.PCM.Open()
			if openErr == nil {
				_, _ = writeWithDeadline(ctx, f, pcm, pollInterval)
			}
		}
		if err != nil && err != errTimedOut && err != io.EOF {
			t.env.Log.Warn("a2dp sink read failed", "transport", t.Type, "err", err)
			return
		}
	}
}

// runSCOWorker moves PCM between the speaker/microphone endpoints and the
// SCO socket. Speaker drain follows the same handshake as A2DP source
// (spec.md §4.10).
func (t *Transport) runSCOWorker(ctx context.Context) {
	s := t.SCO
	spkBuf := make([]byte, 512)
	micBuf := make([]byte, 512)

	for ctx.Err() == nil {
		if !t.pausedWait(ctx) {
			return
		}

		if f, err := s.SpeakerPCM.Open(); err == nil {
			if n, _ := readWithDeadline(ctx, f, spkBuf, pollInterval); n > 0 {
				_, _ = writeWithDeadline(ctx, t.socket, spkBuf[:n], pollInterval)
			}
		}
		if n, _ := readWithDeadline(ctx, t.socket, micBuf, pollInterval); n > 0 {
			if f, err := s.MicPCM.Open(); err == nil {
				_, _ = writeWithDeadline(ctx, f, micBuf[:n], pollInterval)
			}
		}
		t.drainIfRequested(s.spkDrainCond)
	}
}

// runRFCOMMWorker handles AT commands forwarded over the signalling
// channel (spec.md §4.3, §4.8). The AT-command parser proper is out of
// scope (spec.md §1); this loop owns dispatch and socket IO only.
func (t *Transport) runRFCOMMWorker(ctx context.Context) {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-t.sig.recv():
			if sig.kind == sigRFCOMMSend {
				_, _ = writeWithDeadline(ctx, t.socket, sig.atCommand[:], pollInterval)
			}
		default:
		}

		if !t.pausedWait(ctx) {
			return
		}

		n, err := readWithDeadline(ctx, t.socket, buf, pollInterval)
		if n > 0 {
			t.handleATCommand(buf[:n])
		}
		if err != nil && err != errTimedOut {
			if err == io.EOF {
				return
			}
			t.env.Log.Warn("rfcomm read failed", "transport", t.Type, "err", err)
			return
		}
	}
}

// handleATCommand is the seam the RFCOMM AT-command parser plugs into. It
// discards every line: no AT command is parsed here, the battery report
// included, so nothing in this package sets Device.Battery or
// Device.VendorExt.
func (t *Transport) handleATCommand(line []byte) {
	_ = line // parsed by a concrete build's AT-command layer
}

// drainIfRequested drains one pending PCM-SYNC signal by broadcasting the
// drain condvar, waking any DrainPCM caller (spec.md §4.10).
func (t *Transport) drainIfRequested(cond *sync.Cond) {
	select {
	case sig := <-t.sig.recv():
		if sig.kind == sigPCMSync {
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		}
	default:
	}
}
