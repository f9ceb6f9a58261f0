package ba

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSetStateIdempotentForAnyCurrentState checks that calling SetState with
// the transport's current state is always a no-op, for any reachable state
// (spec.md §8: "set_state(s) is idempotent when the current state equals s").
func TestSetStateIdempotentForAnyCurrentState(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		env, sink := newTestEnv(t)
		dev := newTestDevice(t, env)
		tr, err := NewSCOTransport(env, dev, ProfileHFPAG, HFPCodecMSBC, "org.bluez", "/prop/idempotent")
		require.NoError(t, err)
		defer tr.Free()
		drainEvents(sink)

		target := rapid.SampledFrom([]State{StateIdle, StatePending, StateActive, StatePaused}).Draw(tt, "target")
		require.NoError(t, tr.SetState(context.Background(), target))
		got := tr.State()

		require.NoError(t, tr.SetState(context.Background(), got))
		require.Equal(t, got, tr.State())
	})
}

// TestA2DPSinkNeverReachesActiveDirectlyFromIdle exercises spec.md §8's sink
// guard against every other target state, not just ACTIVE.
func TestA2DPSinkNeverReachesActiveDirectlyFromIdle(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		env, sink := newTestEnv(t)
		dev := newTestDevice(t, env)
		tr, err := NewA2DPTransport(env, dev, ProfileA2DPSink, A2DPCodecSBC, "org.bluez", "/prop/sinkguard", nil)
		require.NoError(t, err)
		defer tr.Free()
		drainEvents(sink)

		target := rapid.SampledFrom([]State{StateActive, StatePaused, StateLimbo}).Draw(tt, "target")
		require.NoError(t, tr.SetState(context.Background(), target))
		require.Equal(t, StateIdle, tr.State())
	})
}

// TestSBCDecodeChannelsAndRateAlwaysInDeclaredSet covers spec.md §8: "for
// all codec configurations, channels ∈ {0, 1, 2} and sample_rate ∈ the
// codec's declared set ∪ {0}".
func TestSBCDecodeChannelsAndRateAlwaysInDeclaredSet(t *testing.T) {
	validRates := map[int]bool{0: true, 16000: true, 32000: true, 44100: true, 48000: true}

	rapid.Check(t, func(tt *rapid.T) {
		blob := []byte{byte(rapid.IntRange(0, 255).Draw(tt, "byte0"))}
		p := decodeSBC(blob)
		require.Contains(t, []int{0, 1, 2}, p.Channels)
		require.True(t, validRates[p.SampleRate], "unexpected sample rate %d", p.SampleRate)
	})
}

// TestAACDecodeChannelsAndRateAlwaysInDeclaredSet is the AAC analogue, over
// arbitrary-length blobs including ones too short to decode.
func TestAACDecodeChannelsAndRateAlwaysInDeclaredSet(t *testing.T) {
	validRates := map[int]bool{0: true, 8000: true, 11025: true, 12000: true, 16000: true, 22050: true, 24000: true, 32000: true, 44100: true, 48000: true, 64000: true, 88200: true, 96000: true}

	rapid.Check(t, func(tt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(tt, "len")
		blob := make([]byte, n)
		for i := range blob {
			blob[i] = byte(rapid.IntRange(0, 255).Draw(tt, "byte"))
		}
		p := decodeAAC(blob)
		require.Contains(t, []int{0, 1, 2}, p.Channels)
		require.True(t, validRates[p.SampleRate], "unexpected sample rate %d", p.SampleRate)
	})
}

// TestRFCOMMDestroyAlwaysDestroysSCOChild covers spec.md §8: "for all RFCOMM
// transports, destroy(rfcomm) implies destroy(rfcomm.sco) and removes both
// from the device map", across arbitrary transport path strings.
func TestRFCOMMDestroyAlwaysDestroysSCOChild(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		env, sink := newTestEnv(t)
		dev := newTestDevice(t, env)

		suffix := rapid.StringMatching(`[a-z0-9]{1,12}`).Draw(tt, "suffix")
		path := "/prop/rfcomm-" + suffix

		rfcomm, err := NewRFCOMMTransport(env, dev, ProfileHFPAG, "org.bluez", path)
		require.NoError(t, err)
		sco := rfcomm.RFCOMM.SCO
		drainEvents(sink)

		before := dev.TransportCount()
		require.Equal(t, 2, before)

		rfcomm.Free()

		require.Equal(t, StateLimbo, rfcomm.State())
		require.Equal(t, StateLimbo, sco.State())
		require.Equal(t, 0, dev.TransportCount())

		_, ok := dev.Lookup(path)
		require.False(t, ok)
		_, ok = dev.Lookup(path + "/sco")
		require.False(t, ok)
	})
}

// TestDuplicateTransportPathAlwaysRejected covers insertion collisions for
// arbitrary path strings, independent of profile.
func TestDuplicateTransportPathAlwaysRejected(t *testing.T) {
	rapid.Check(t, func(tt *rapid.T) {
		env, sink := newTestEnv(t)
		dev := newTestDevice(t, env)

		suffix := rapid.StringMatching(`[a-z0-9]{1,12}`).Draw(tt, "suffix")
		path := "/prop/dup-" + suffix

		first, err := NewA2DPTransport(env, dev, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", path, nil)
		require.NoError(t, err)
		drainEvents(sink)

		_, err = NewA2DPTransport(env, dev, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", path, nil)
		require.Error(t, err)

		first.Free()
		drainEvents(sink)
	})
}

// TestDrainPCMWaitsForWorkerAckAndSettleDelay is end-to-end scenario 6: an
// ACTIVE A2DP source's DrainPCM call returns only after the worker
// acknowledges the PCM-SYNC signal and the configured settle delay elapses.
func TestDrainPCMWaitsForWorkerAckAndSettleDelay(t *testing.T) {
	env, sink := newTestEnv(t)
	dev := newTestDevice(t, env)
	tr, err := NewA2DPTransport(env, dev, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", "/prop/drain", nil)
	require.NoError(t, err)
	defer tr.Free()
	drainEvents(sink)

	require.NoError(t, tr.SetState(context.Background(), StateActive))

	start := time.Now()
	require.NoError(t, tr.DrainPCM(context.Background()))
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, env.Tunables.DrainSettleDelay)
}

// TestDoubleDestroyNeverEmitsASecondEvent is end-to-end scenario 5: a second
// Free on an already-freed transport is an immediate no-op, for every
// profile kind.
func TestDoubleDestroyNeverEmitsASecondEvent(t *testing.T) {
	profiles := []struct {
		profile Profile
		build   func(env *Environment, dev *Device, path string) (*Transport, error)
	}{
		{ProfileA2DPSource, func(env *Environment, dev *Device, path string) (*Transport, error) {
			return NewA2DPTransport(env, dev, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", path, nil)
		}},
		{ProfileHFPAG, func(env *Environment, dev *Device, path string) (*Transport, error) {
			return NewSCOTransport(env, dev, ProfileHFPAG, HFPCodecMSBC, "org.bluez", path)
		}},
	}

	for i, p := range profiles {
		env, sink := newTestEnv(t)
		dev := newTestDevice(t, env)
		tr, err := p.build(env, dev, "/prop/double-destroy")
		require.NoError(t, err)
		drainEvents(sink)

		tr.Free()
		<-sink.Events()

		tr.Free()
		select {
		case extra := <-sink.Events():
			t.Fatalf("profile %d: second Free emitted an extra event: %+v", i, extra)
		default:
		}
		require.Equal(t, StateLimbo, tr.State())
	}
}
