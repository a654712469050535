package main

// This file defines the boundary to the P25 physical-layer decoder. Symbol
// sync, trellis/RS/BCH FEC, the IMBE vocoder and TSBK/LC framing are out of
// scope for this repository (spec §1); they are assumed to live behind this
// interface in an external library that consumes baseband samples one at a
// time and yields typed events, the same role `p25::message::receiver::
// MessageReceiver` plays in the original implementation.

// TsbkOpcode identifies the kind of a trunking signalling block.
type TsbkOpcode int

const (
	OpcodeUnknown TsbkOpcode = iota
	OpcodeGroupVoiceGrant
	OpcodeGroupVoiceGrantUpdate
	OpcodeGroupVoiceGrantUpdateExplicit
	OpcodeIdentUpdate
	OpcodeRfssStatusBroadcast
	OpcodeNetworkStatusBroadcast
	OpcodeAltControlChannel
	OpcodeAdjacentSite
	OpcodeLocRegResponse
	OpcodeUnitRegResponse
	OpcodeUnitDeregAck
)

// IsChannelGrant reports whether this opcode grants a talkgroup a traffic
// channel (the three grant variants named in spec §4.4).
func (o TsbkOpcode) IsChannelGrant() bool {
	switch o {
	case OpcodeGroupVoiceGrant, OpcodeGroupVoiceGrantUpdate, OpcodeGroupVoiceGrantUpdateExplicit:
		return true
	default:
		return false
	}
}

// TsbkFields is an opaque, copyable view over one decoded TSBK. The core
// treats the payload as a tagged variant selected by Opcode; the fields
// below are left at their zero values when not applicable to the opcode.
type TsbkFields struct {
	Opcode TsbkOpcode

	// Channel grant payload.
	GrantChannel   ChannelIdentifier
	GrantTalkgroup Talkgroup

	// IDENT_UPDATE payload.
	IdentID     uint8
	IdentParams ChannelParams

	// RFSS/network status payload.
	Area, RFSS, Site uint8
	System           uint16
	WACN             uint32

	// Alt control channel / adjacent site payload.
	AltChannels []ChannelIdentifier
	SiteChannel ChannelIdentifier

	// Registration payload.
	RegResponse uint8
	RegUnit     uint32
	RegUnitAddr uint32
}

// LcOpcode identifies the kind of an in-band link-control frame.
type LcOpcode int

const (
	LcOpcodeUnknown LcOpcode = iota
	LcOpcodeGroupVoiceTraffic
	LcOpcodeRfssStatusBroadcast
	LcOpcodeAdjacentSite
	LcOpcodeAltControlChannel
)

// LinkControlFields is an opaque, copyable view over one decoded LC frame.
type LinkControlFields struct {
	Opcode LcOpcode

	SrcUnit uint32

	Area, RFSS, Site uint8
	System           uint16

	AltChannels []ChannelIdentifier
	SiteChannel ChannelIdentifier
}

// VoiceFrame is one decoded IMBE voice frame's worth of PCM samples
// (f32, mono, 8 kHz), ready to hand to the Audio task.
type VoiceFrame struct {
	PCM []float32
}

// DecoderEventKind tags the variant carried by a DecoderEvent.
type DecoderEventKind int

const (
	EventNone DecoderEventKind = iota
	EventTsbk
	EventLinkControl
	EventVoiceFrame
	EventEndOfTransmission
	EventDecodeError
)

// DecoderEvent is one event yielded by feeding a sample to the Decoder.
type DecoderEvent struct {
	Kind  DecoderEventKind
	Tsbk  TsbkFields
	Lc    LinkControlFields
	Voice VoiceFrame
	Err   error
}

// Decoder drives the P25 physical layer one baseband sample at a time.
// Implementations are expected to be stateful (symbol timing, FEC,
// deframing) and are not safe for concurrent use.
type Decoder interface {
	// Feed advances the decoder by one 48kHz baseband sample and reports
	// whether an event was produced.
	Feed(sample float32) (DecoderEvent, bool)

	// Stats returns a snapshot of running decode statistics.
	Stats() DecoderStats

	// Version reports the decoder library's version string, used only
	// for a startup compatibility check/log line.
	Version() string
}

// DecoderStats counts decode outcomes. Never surfaced over the network;
// used for diagnostics only (spec §7).
type DecoderStats struct {
	FramesDecoded uint64
	SyncLosses    uint64
	Errors        uint64
}
