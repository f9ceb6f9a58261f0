package ba

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdapterRegistryLookupCreatesOnce(t *testing.T) {
	env, _ := newTestEnv(t)
	reg := NewAdapterRegistry(env)

	a1 := reg.Lookup(0, "hci0")
	a2 := reg.Lookup(0, "hci0")
	require.Same(t, a1, a2)

	got, ok := reg.Get(0)
	require.True(t, ok)
	require.Same(t, a1, got)

	_, ok = reg.Get(1)
	require.False(t, ok)
}

func TestAdapterDeviceLookupCreatesOnce(t *testing.T) {
	env, _ := newTestEnv(t)
	a := newAdapter(env, 0, "hci0")
	addr := [6]byte{1, 2, 3, 4, 5, 6}

	d1 := a.Device(addr)
	d2 := a.Device(addr)
	require.Same(t, d1, d2)

	got, ok := a.LookupDevice(addr)
	require.True(t, ok)
	require.Same(t, d1, got)
}

func TestAdapterFreeDestroysDevicesAndTransports(t *testing.T) {
	env, sink := newTestEnv(t)
	reg := NewAdapterRegistry(env)
	a := reg.Lookup(0, "hci0")
	dev := a.Device([6]byte{1, 2, 3, 4, 5, 6})

	tr, err := NewA2DPTransport(env, dev, ProfileA2DPSink, A2DPCodecSBC, "org.bluez", "/test/free", nil)
	require.NoError(t, err)
	drainEvents(sink)

	a.Free()

	require.Equal(t, StateLimbo, tr.State())
	require.Equal(t, 0, dev.TransportCount())
}

func TestAdapterStringFormat(t *testing.T) {
	env, _ := newTestEnv(t)
	a := newAdapter(env, 2, "hci2")
	require.Equal(t, "hci2(hci2)", a.String())
}
