package ba

// MPEG-1/2 Layer I/II capability blob bit layout, byte 0 (channel mode),
// byte 1 (sampling frequency). This codec has a channel/sample-rate
// decoder but, per spec.md §4.3, no worker routine ("MPEG-1/2 slot present
// but unimplemented") — worker spawn for this codec always fails with
// ErrCodecUnsupported.
const (
	mpegChannelModeMono        = 1 << 0
	mpegChannelModeDualChannel = 1 << 1
	mpegChannelModeStereo      = 1 << 2
	mpegChannelModeJointStereo = 1 << 3

	mpegSamplingFreq48000 = 1 << 0
	mpegSamplingFreq44100 = 1 << 1
	mpegSamplingFreq32000 = 1 << 2
	mpegSamplingFreq24000 = 1 << 3
	mpegSamplingFreq22050 = 1 << 4
	mpegSamplingFreq16000 = 1 << 5
)

func decodeMPEG12(blob []byte) CodecParams {
	if len(blob) < 2 {
		return CodecParams{}
	}
	var p CodecParams

	switch {
	case blob[0]&mpegChannelModeMono != 0:
		p.Channels = 1
	case blob[0]&(mpegChannelModeStereo|mpegChannelModeJointStereo|mpegChannelModeDualChannel) != 0:
		p.Channels = 2
	}

	switch {
	case blob[1]&mpegSamplingFreq16000 != 0:
		p.SampleRate = 16000
	case blob[1]&mpegSamplingFreq22050 != 0:
		p.SampleRate = 22050
	case blob[1]&mpegSamplingFreq24000 != 0:
		p.SampleRate = 24000
	case blob[1]&mpegSamplingFreq32000 != 0:
		p.SampleRate = 32000
	case blob[1]&mpegSamplingFreq44100 != 0:
		p.SampleRate = 44100
	case blob[1]&mpegSamplingFreq48000 != 0:
		p.SampleRate = 48000
	}

	return p
}
