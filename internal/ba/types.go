// Package ba implements the transport core of the Bluetooth audio bridge:
// the adapter/device/transport object graph, the transport lifecycle state
// machine, the IO worker model, codec-parameter decoding and the local
// event emitter.
package ba

import "fmt"

// Profile is a bitmask identifying a Bluetooth audio/telephony profile role.
// It mirrors the BA_TRANSPORT_PROFILE_* bit layout of the bluez-alsa source
// this package is modeled on.
type Profile uint16

const (
	ProfileA2DPSource Profile = 1 << iota
	ProfileA2DPSink
	ProfileHSPHS
	ProfileHSPAG
	ProfileHFPHF
	ProfileHFPAG
	ProfileRFCOMM
)

const (
	ProfileMaskA2DP = ProfileA2DPSource | ProfileA2DPSink
	ProfileMaskHSP  = ProfileHSPHS | ProfileHSPAG
	ProfileMaskHFP  = ProfileHFPHF | ProfileHFPAG
	ProfileMaskSCO  = ProfileMaskHSP | ProfileMaskHFP
)

func (p Profile) String() string {
	switch {
	case p&ProfileRFCOMM != 0:
		return "RFCOMM"
	case p&ProfileA2DPSource != 0:
		return "A2DP-SOURCE"
	case p&ProfileA2DPSink != 0:
		return "A2DP-SINK"
	case p&ProfileHSPHS != 0:
		return "HSP-HS"
	case p&ProfileHSPAG != 0:
		return "HSP-AG"
	case p&ProfileHFPHF != 0:
		return "HFP-HF"
	case p&ProfileHFPAG != 0:
		return "HFP-AG"
	default:
		return fmt.Sprintf("profile(%#04x)", uint16(p))
	}
}

// A2DPCodec identifies an A2DP codec as negotiated in the capability blob.
type A2DPCodec uint8

const (
	A2DPCodecSBC A2DPCodec = iota
	A2DPCodecMPEG12
	A2DPCodecAAC
	A2DPCodecAptX
	A2DPCodecLDAC
)

func (c A2DPCodec) String() string {
	switch c {
	case A2DPCodecSBC:
		return "SBC"
	case A2DPCodecMPEG12:
		return "MPEG-1/2"
	case A2DPCodecAAC:
		return "AAC"
	case A2DPCodecAptX:
		return "aptX"
	case A2DPCodecLDAC:
		return "LDAC"
	default:
		return "unknown"
	}
}

// HFPCodec identifies the SCO-link voice codec.
type HFPCodec uint8

const (
	HFPCodecUndefined HFPCodec = iota
	HFPCodecCVSD
	HFPCodecMSBC
)

func (c HFPCodec) String() string {
	switch c {
	case HFPCodecCVSD:
		return "CVSD"
	case HFPCodecMSBC:
		return "mSBC"
	default:
		return "undefined"
	}
}

// Type fully identifies a transport's profile and codec.
type Type struct {
	Profile Profile
	A2DP    A2DPCodec
	HFP     HFPCodec
}

func (t Type) String() string {
	if t.Profile&ProfileMaskA2DP != 0 {
		return fmt.Sprintf("%s:%s", t.Profile, t.A2DP)
	}
	if t.Profile&ProfileMaskSCO != 0 {
		return fmt.Sprintf("%s:%s", t.Profile, t.HFP)
	}
	return t.Profile.String()
}

// State is a transport lifecycle state (spec.md §4.2).
type State int

const (
	StateIdle State = iota
	StatePending
	StateActive
	StatePaused
	StateLimbo
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePending:
		return "PENDING"
	case StateActive:
		return "ACTIVE"
	case StatePaused:
		return "PAUSED"
	case StateLimbo:
		return "LIMBO"
	default:
		return "UNKNOWN"
	}
}

// PCMStream identifies a direction bit of a PCM type mask (spec.md §6).
type PCMStream uint16

const (
	PCMStreamPlayback PCMStream = 1 << iota
	PCMStreamCapture
)

// PCMKind identifies the profile bits of a PCM type mask (spec.md §6).
type PCMKind uint16

const (
	PCMKindA2DP PCMKind = 1 << iota
	PCMKindSCO
)
