package main

import (
	"io"
	"log"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestReceiver(t *testing.T, decoder Decoder, hopEnabled bool, tgselect, watchdog, pause uint64) (
	*ReceiverTask, chan BasebandBlock, chan RecvCommand, chan HubEvent, chan ControlCommand, chan VoiceFrame,
) {
	t.Helper()

	baseband := make(chan BasebandBlock, 1)
	cmds := make(chan RecvCommand, 1)
	hub := make(chan HubEvent, 64)
	ctl := make(chan ControlCommand, 64)
	audio := make(chan VoiceFrame, 64)

	policy := NewReceiverPolicy(tgselect, watchdog, pause)
	talkgroups := NewTalkgroupSelection(nil)
	metrics := NewMetrics(newTestRegistry())

	r := NewReceiverTask(baseband, cmds, hub, ctl, audio, decoder, policy, talkgroups,
		Frequency(851_000_000), hopEnabled, testLogger(), metrics)

	return r, baseband, cmds, hub, ctl, audio
}

func drainControlTunes(ctl chan ControlCommand) []Frequency {
	var freqs []Frequency
	for {
		select {
		case cmd := <-ctl:
			if cmd.Kind == ControlTune {
				freqs = append(freqs, cmd.Freq)
			}
		default:
			return freqs
		}
	}
}

// TestReceiverHopsToGrantedTalkgroup drives a grant through a Collecting
// window and asserts the Receiver emits a curFreq event and tunes to the
// grant's resolved frequency (single-grant part of spec.md §8 scenario S6).
func TestReceiverHopsToGrantedTalkgroup(t *testing.T) {
	ident := tsbkIdentUpdate(3, ChannelParams{BaseFrequency: 856_000_000, SpacingHz: 12_500})
	grant := tsbkGrant(ChannelIdentifier{ID: 3, Number: 100}, Talkgroup(555))

	decoder := newFakeDecoder().at(0, ident).at(1, grant)

	const tgselectWindow = 5
	r, baseband, _, hub, ctl, _ := newTestReceiver(t, decoder, true, tgselectWindow, 100, 100)

	go r.Run()
	time.Sleep(10 * time.Millisecond) // allow initial tune to land
	drainControlTunes(ctl)

	samples := make([]float32, tgselectWindow+2)
	baseband <- BasebandBlock{Samples: samples}

	deadline := time.After(time.Second)
	var sawCurFreq bool
	for !sawCurFreq {
		select {
		case e := <-hub:
			if e.Kind == HubEventCurFreq {
				sawCurFreq = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a curFreq hub event")
		}
	}

	freqs := drainControlTunes(ctl)
	wantFreq := ChannelParams{BaseFrequency: 856_000_000, SpacingHz: 12_500}.RxFreq(100)
	found := false
	for _, f := range freqs {
		if f == wantFreq {
			found = true
		}
	}
	if !found {
		t.Fatalf("controller tunes = %v, want one tune to %s", freqs, wantFreq)
	}
}

// TestReceiverNohopNeverTunesAwayFromControl asserts invariant 5: with
// hopEnabled=false, grants never move the Receiver off the control
// frequency.
func TestReceiverNohopNeverTunesAwayFromControl(t *testing.T) {
	ident := tsbkIdentUpdate(3, ChannelParams{BaseFrequency: 856_000_000, SpacingHz: 12_500})
	grant := tsbkGrant(ChannelIdentifier{ID: 3, Number: 100}, Talkgroup(555))

	decoder := newFakeDecoder().at(0, ident).at(1, grant)

	r, baseband, _, _, ctl, _ := newTestReceiver(t, decoder, false, 5, 100, 100)

	go r.Run()
	time.Sleep(10 * time.Millisecond)
	drainControlTunes(ctl)

	baseband <- BasebandBlock{Samples: make([]float32, 20)}
	time.Sleep(20 * time.Millisecond)

	for _, f := range drainControlTunes(ctl) {
		if f != Frequency(851_000_000) {
			t.Fatalf("received a tune to %s with --nohop, want only the control frequency", f)
		}
	}
}

// TestReceiverWatchdogReturnsToControlFreq asserts that a Locked receiver
// with no further voice returns to the control channel once the watchdog
// window elapses.
func TestReceiverWatchdogReturnsToControlFreq(t *testing.T) {
	decoder := newFakeDecoder() // no events; just advance samples
	const watchdogWindow = 4

	r, baseband, _, hub, ctl, _ := newTestReceiver(t, decoder, true, 100, watchdogWindow, 100)
	r.policy.Lock() // simulate already being on a traffic channel

	go r.Run()
	time.Sleep(5 * time.Millisecond)
	drainControlTunes(ctl)

	baseband <- BasebandBlock{Samples: make([]float32, watchdogWindow+2)}

	deadline := time.After(time.Second)
	var gotTune bool
	for !gotTune {
		select {
		case cmd := <-ctl:
			if cmd.Kind == ControlTune && cmd.Freq == Frequency(851_000_000) {
				gotTune = true
			}
		case <-hub:
		case <-deadline:
			t.Fatalf("timed out waiting for the watchdog to return to the control frequency")
		}
	}
}
