package ba

// CodecParams is the (channels, sample rate) pair the codec parameter
// decoder derives from a capability blob (spec.md §4.9).
type CodecParams struct {
	Channels   int
	SampleRate int
}

// decodeA2DP maps an A2DP capability blob to CodecParams for the given
// codec. Unknown/unset fields return the zero value per codec decoder
// (channels=0, rate=0) and callers must tolerate that (spec.md §4.9, §8).
func decodeA2DP(codec A2DPCodec, blob []byte) CodecParams {
	switch codec {
	case A2DPCodecSBC:
		return decodeSBC(blob)
	case A2DPCodecMPEG12:
		return decodeMPEG12(blob)
	case A2DPCodecAAC:
		return decodeAAC(blob)
	case A2DPCodecAptX:
		return decodeAptX(blob)
	case A2DPCodecLDAC:
		return decodeLDAC(blob)
	default:
		return CodecParams{}
	}
}

// decodeSCO returns the fixed (1 channel, rate) pair for a SCO link's
// negotiated voice codec (spec.md §4.9).
func decodeSCO(codec HFPCodec) CodecParams {
	switch codec {
	case HFPCodecCVSD:
		return CodecParams{Channels: 1, SampleRate: 8000}
	case HFPCodecMSBC:
		return CodecParams{Channels: 1, SampleRate: 16000}
	default:
		return CodecParams{}
	}
}

// Channels is a pure function over the transport's codec capability blob
// (spec.md §4.9).
func (t *Transport) Channels() int {
	return t.codecParams().Channels
}

// SampleRate is a pure function over the transport's codec capability blob
// (spec.md §4.9).
func (t *Transport) SampleRate() int {
	return t.codecParams().SampleRate
}

func (t *Transport) codecParams() CodecParams {
	switch {
	case t.Type.Profile&ProfileMaskA2DP != 0:
		return decodeA2DP(t.Type.A2DP, t.A2DP.CConfig)
	case t.Type.Profile&ProfileMaskSCO != 0:
		return decodeSCO(t.Type.HFP)
	default:
		return CodecParams{}
	}
}
