package ba

// aptX is a vendor codec: the capability blob is prefixed with a 4-byte
// vendor id + 2-byte vendor codec id (A2DP vendor-specific codec framing),
// followed by one byte packing channel mode and sampling frequency.
const aptxVendorHeaderLen = 6

const (
	aptxChannelModeMono   = 1 << 0
	aptxChannelModeStereo = 1 << 1

	aptxSamplingFreq48000 = 1 << 2
	aptxSamplingFreq44100 = 1 << 3
	aptxSamplingFreq32000 = 1 << 4
	aptxSamplingFreq16000 = 1 << 5
)

func decodeAptX(blob []byte) CodecParams {
	if len(blob) < aptxVendorHeaderLen+1 {
		return CodecParams{}
	}
	b := blob[aptxVendorHeaderLen]
	var p CodecParams

	switch {
	case b&aptxChannelModeMono != 0:
		p.Channels = 1
	case b&aptxChannelModeStereo != 0:
		p.Channels = 2
	}

	switch {
	case b&aptxSamplingFreq16000 != 0:
		p.SampleRate = 16000
	case b&aptxSamplingFreq32000 != 0:
		p.SampleRate = 32000
	case b&aptxSamplingFreq44100 != 0:
		p.SampleRate = 44100
	case b&aptxSamplingFreq48000 != 0:
		p.SampleRate = 48000
	}

	return p
}
