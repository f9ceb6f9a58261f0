package ba

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSBCJointStereo44100(t *testing.T) {
	blob := []byte{sbcChannelModeJointStereo | sbcSamplingFreq44100}
	p := decodeSBC(blob)
	require.Equal(t, CodecParams{Channels: 2, SampleRate: 44100}, p)
}

func TestDecodeSBCMono16000(t *testing.T) {
	blob := []byte{sbcChannelModeMono | sbcSamplingFreq16000}
	p := decodeSBC(blob)
	require.Equal(t, CodecParams{Channels: 1, SampleRate: 16000}, p)
}

func TestDecodeSBCEmptyBlob(t *testing.T) {
	require.Equal(t, CodecParams{}, decodeSBC(nil))
}

func TestDecodeAACStereo48000(t *testing.T) {
	blob := []byte{0x00, aacChannels2, 0x08}
	p := decodeAAC(blob)
	require.Equal(t, CodecParams{Channels: 2, SampleRate: 48000}, p)
}

func TestDecodeAACMono44100(t *testing.T) {
	// 44100 is bit 4 of the 12-bit frequency field; high nibble of blob[1]
	// packs bit 11..8, blob[2] packs bit 7..0, so 1<<4 lands in blob[2].
	blob := []byte{0x00, aacChannels1, byte(aacFreq44100)}
	p := decodeAAC(blob)
	require.Equal(t, CodecParams{Channels: 1, SampleRate: 44100}, p)
}

func TestDecodeAACTooShort(t *testing.T) {
	require.Equal(t, CodecParams{}, decodeAAC([]byte{0x00, 0x01}))
}

func TestDecodeMPEG12StereoJoint44100(t *testing.T) {
	blob := []byte{mpegChannelModeJointStereo, mpegSamplingFreq44100}
	p := decodeMPEG12(blob)
	require.Equal(t, CodecParams{Channels: 2, SampleRate: 44100}, p)
}

func TestDecodeAptXStereo44100(t *testing.T) {
	blob := make([]byte, aptxVendorHeaderLen+1)
	blob[aptxVendorHeaderLen] = aptxChannelModeStereo | aptxSamplingFreq44100
	p := decodeAptX(blob)
	require.Equal(t, CodecParams{Channels: 2, SampleRate: 44100}, p)
}

func TestDecodeAptXTooShort(t *testing.T) {
	require.Equal(t, CodecParams{}, decodeAptX(make([]byte, aptxVendorHeaderLen)))
}

func TestDecodeLDACStereo96000(t *testing.T) {
	blob := make([]byte, ldacVendorHeaderLen+2)
	blob[ldacVendorHeaderLen] = ldacChannelModeStereo
	blob[ldacVendorHeaderLen+1] = ldacSamplingFreq96000
	p := decodeLDAC(blob)
	require.Equal(t, CodecParams{Channels: 2, SampleRate: 96000}, p)
}

func TestDecodeSCOFixedRates(t *testing.T) {
	require.Equal(t, CodecParams{Channels: 1, SampleRate: 8000}, decodeSCO(HFPCodecCVSD))
	require.Equal(t, CodecParams{Channels: 1, SampleRate: 16000}, decodeSCO(HFPCodecMSBC))
	require.Equal(t, CodecParams{}, decodeSCO(HFPCodecUndefined))
}

func TestTransportChannelsAndSampleRateDelegateToCodecParams(t *testing.T) {
	env, sink := newTestEnv(t)
	reg := NewAdapterRegistry(env)
	dev := reg.Lookup(0, "hci0").Device([6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})

	cconfig := []byte{sbcChannelModeJointStereo | sbcSamplingFreq44100}
	tr, err := NewA2DPTransport(env, dev, ProfileA2DPSource, A2DPCodecSBC, "org.bluez", "/test/a2dp", cconfig)
	require.NoError(t, err)
	drainEvents(sink)

	require.Equal(t, 2, tr.Channels())
	require.Equal(t, 44100, tr.SampleRate())
}
