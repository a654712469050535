package main

// fakeDecoder is a deterministic, scripted Decoder (spec.md §8, SPEC_FULL
// §3): Feed fires each event scheduled with at() on its sample index,
// otherwise reports nothing, so tests can drive the Receiver/Policy
// without a real P25 PHY.
type fakeDecoder struct {
	scripted map[uint64]DecoderEvent
	sample   uint64
	stats    DecoderStats
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{scripted: make(map[uint64]DecoderEvent)}
}

// at schedules event to fire on the n'th call to Feed (0-indexed).
func (d *fakeDecoder) at(n uint64, event DecoderEvent) *fakeDecoder {
	d.scripted[n] = event
	return d
}

func (d *fakeDecoder) Feed(sample float32) (DecoderEvent, bool) {
	event, ok := d.scripted[d.sample]
	d.sample++
	if ok {
		d.stats.FramesDecoded++
		if event.Kind == EventDecodeError {
			d.stats.Errors++
		}
	}
	return event, ok
}

func (d *fakeDecoder) Stats() DecoderStats { return d.stats }
func (d *fakeDecoder) Version() string     { return "fake-1.0.0" }

func tsbkGrant(ch ChannelIdentifier, tg Talkgroup) DecoderEvent {
	return DecoderEvent{Kind: EventTsbk, Tsbk: TsbkFields{
		Opcode:         OpcodeGroupVoiceGrant,
		GrantChannel:   ch,
		GrantTalkgroup: tg,
	}}
}

func tsbkIdentUpdate(id uint8, params ChannelParams) DecoderEvent {
	return DecoderEvent{Kind: EventTsbk, Tsbk: TsbkFields{
		Opcode:      OpcodeIdentUpdate,
		IdentID:     id,
		IdentParams: params,
	}}
}

func voiceFrame() DecoderEvent {
	return DecoderEvent{Kind: EventVoiceFrame, Voice: VoiceFrame{PCM: []float32{0, 0}}}
}
