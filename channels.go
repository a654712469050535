package main

// This file collects the message types carried on the pipeline's channels
// (spec §2, §5). Each channel is single-producer/single-consumer except
// where noted; channel *values* (directions) are constructed in main.go.

// ControlCommand is sent to the Controller task.
type ControlCommand struct {
	Kind ControlKind
	Freq Frequency // only meaningful when Kind == ControlTune
}

// ControlKind tags a ControlCommand's variant.
type ControlKind int

const (
	ControlTune ControlKind = iota
	ControlReset
)

// RecvCommand is sent to the Receiver task (currently only from the Hub,
// but the channel is multi-producer per spec §3).
type RecvCommand struct {
	Kind RecvCommandKind
	Freq Frequency // meaningful for RecvSetControlFreq
}

type RecvCommandKind int

const (
	RecvSetControlFreq RecvCommandKind = iota
)

// StateEventKind tags a StateEvent's variant.
type StateEventKind int

const (
	StateUpdateCtlFreq StateEventKind = iota
	StateUpdateChannelParams
)

// StateEvent carries a mutation to HubState; it is the only kind of
// HubEvent the Hub applies to its own state before fanning out (spec §3,
// §4.6).
type StateEvent struct {
	Kind   StateEventKind
	Freq   Frequency  // UpdateCtlFreq
	Ident  uint8      // UpdateChannelParams
	Params ChannelParams
}

// HubEventKind tags a HubEvent's variant.
type HubEventKind int

const (
	HubEventState HubEventKind = iota
	HubEventCurFreq
	HubEventTalkGroup
	HubEventSigPower
	HubEventTrunkingControl
	HubEventLinkControl
)

// HubEvent is sent on the hub channel (multi-producer: Receiver and
// Demodulator both produce; spec §2, §3).
type HubEvent struct {
	Kind      HubEventKind
	State     StateEvent
	CurFreq   Frequency
	TalkGroup Talkgroup
	SigPower  float32
	Tsbk      TsbkFields
	Lc        LinkControlFields
}
