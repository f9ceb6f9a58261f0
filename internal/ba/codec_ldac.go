package ba

// LDAC is a Sony vendor codec, same 6-byte vendor-id/codec-id prefix as
// aptX, followed by one byte channel mode and one byte sampling frequency.
const ldacVendorHeaderLen = 6

const (
	ldacChannelModeMono         = 1 << 2
	ldacChannelModeDualChannel  = 1 << 1
	ldacChannelModeStereo       = 1 << 0

	ldacSamplingFreq44100  = 1 << 5
	ldacSamplingFreq48000  = 1 << 4
	ldacSamplingFreq88200  = 1 << 3
	ldacSamplingFreq96000  = 1 << 2
	ldacSamplingFreq176400 = 1 << 1
	ldacSamplingFreq192000 = 1 << 0
)

func decodeLDAC(blob []byte) CodecParams {
	if len(blob) < ldacVendorHeaderLen+2 {
		return CodecParams{}
	}
	chMode := blob[ldacVendorHeaderLen]
	freq := blob[ldacVendorHeaderLen+1]
	var p CodecParams

	switch {
	case chMode&ldacChannelModeMono != 0:
		p.Channels = 1
	case chMode&(ldacChannelModeStereo|ldacChannelModeDualChannel) != 0:
		p.Channels = 2
	}

	switch {
	case freq&ldacSamplingFreq44100 != 0:
		p.SampleRate = 44100
	case freq&ldacSamplingFreq48000 != 0:
		p.SampleRate = 48000
	case freq&ldacSamplingFreq88200 != 0:
		p.SampleRate = 88200
	case freq&ldacSamplingFreq96000 != 0:
		p.SampleRate = 96000
	case freq&ldacSamplingFreq176400 != 0:
		p.SampleRate = 176400
	case freq&ldacSamplingFreq192000 != 0:
		p.SampleRate = 192000
	}

	return p
}
