package ba

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceInsertTransportRejectsDuplicatePath(t *testing.T) {
	env, _ := newTestEnv(t)
	a := newAdapter(env, 0, "hci0")
	d := a.Device([6]byte{1, 2, 3, 4, 5, 6})

	tr := &Transport{}
	require.NoError(t, d.insertTransport("/test/path", tr))

	err := d.insertTransport("/test/path", &Transport{})
	require.Error(t, err)

	got, ok := d.Lookup("/test/path")
	require.True(t, ok)
	require.Same(t, tr, got)
}

func TestDeviceRemoveTransport(t *testing.T) {
	env, _ := newTestEnv(t)
	a := newAdapter(env, 0, "hci0")
	d := a.Device([6]byte{1, 2, 3, 4, 5, 6})

	require.NoError(t, d.insertTransport("/test/path", &Transport{}))
	require.Equal(t, 1, d.TransportCount())

	d.removeTransport("/test/path")
	require.Equal(t, 0, d.TransportCount())

	_, ok := d.Lookup("/test/path")
	require.False(t, ok)
}

func TestDeviceZeroMetadata(t *testing.T) {
	env, _ := newTestEnv(t)
	a := newAdapter(env, 0, "hci0")
	d := a.Device([6]byte{1, 2, 3, 4, 5, 6})

	d.Battery = BatteryInfo{Present: true, Level: 5}
	d.VendorExt = VendorExtInfo{Present: true, VendorID: 0x1234}

	d.zeroMetadata()

	require.Equal(t, BatteryInfo{}, d.Battery)
	require.Equal(t, VendorExtInfo{}, d.VendorExt)
}

func TestDeviceString(t *testing.T) {
	env, _ := newTestEnv(t)
	a := newAdapter(env, 0, "hci0")
	d := a.Device([6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	require.Equal(t, "00:11:22:33:44:55", d.String())
}

func TestDeviceFreeAllFreesEveryTransport(t *testing.T) {
	env, sink := newTestEnv(t)
	reg := NewAdapterRegistry(env)
	a := reg.Lookup(0, "hci0")
	d := a.Device([6]byte{1, 2, 3, 4, 5, 6})

	tr1, err := NewA2DPTransport(env, d, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", "/test/1", nil)
	require.NoError(t, err)
	tr2, err := NewA2DPTransport(env, d, ProfileA2DPSink, A2DPCodecSBC, "org.bluez", "/test/2", nil)
	require.NoError(t, err)
	drainEvents(sink)

	d.freeAll()

	require.Equal(t, StateLimbo, tr1.State())
	require.Equal(t, StateLimbo, tr2.State())
	require.Equal(t, 0, d.TransportCount())
}
