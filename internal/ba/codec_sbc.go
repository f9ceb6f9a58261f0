package ba

// SBC capability blob bit layout, byte 0 (channel mode in the low nibble,
// sampling frequency in the high nibble — both bitmasks, since a
// capability blob may advertise several supported values at once; a
// negotiated/selected configuration has exactly one bit set per field).
const (
	sbcChannelModeMono         = 1 << 0
	sbcChannelModeDualChannel  = 1 << 1
	sbcChannelModeStereo       = 1 << 2
	sbcChannelModeJointStereo  = 1 << 3
	sbcSamplingFreq48000       = 1 << 4
	sbcSamplingFreq44100       = 1 << 5
	sbcSamplingFreq32000       = 1 << 6
	sbcSamplingFreq16000       = 1 << 7
)

func decodeSBC(blob []byte) CodecParams {
	if len(blob) < 1 {
		return CodecParams{}
	}
	b := blob[0]
	var p CodecParams

	switch {
	case b&sbcChannelModeMono != 0:
		p.Channels = 1
	case b&(sbcChannelModeStereo|sbcChannelModeJointStereo|sbcChannelModeDualChannel) != 0:
		// Joint-stereo, dual-channel and stereo all count as 2 channels
		// (spec.md §4.9).
		p.Channels = 2
	}

	switch {
	case b&sbcSamplingFreq16000 != 0:
		p.SampleRate = 16000
	case b&sbcSamplingFreq32000 != 0:
		p.SampleRate = 32000
	case b&sbcSamplingFreq44100 != 0:
		p.SampleRate = 44100
	case b&sbcSamplingFreq48000 != 0:
		p.SampleRate = 48000
	}

	return p
}
