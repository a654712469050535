package main

import "testing"

func TestTalkgroupSelectionPicksFirstSeenOnTie(t *testing.T) {
	channels := NewChannelParamsMap()
	channels.Update(1, ChannelParams{BaseFrequency: 851_000_000, SpacingHz: 12_500})

	sel := NewTalkgroupSelection(nil)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 10}, Talkgroup(100), channels)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 20}, Talkgroup(200), channels)

	tg, freq, ok := sel.Pick()
	if !ok {
		t.Fatalf("Pick() ok = false, want true")
	}
	if tg != Talkgroup(100) {
		t.Fatalf("Pick() tg = %d, want 100 (first seen)", tg)
	}
	want := channels.mustRxFreq(t, ChannelIdentifier{ID: 1, Number: 10})
	if freq != want {
		t.Fatalf("Pick() freq = %d, want %d", freq, want)
	}
}

func TestTalkgroupSelectionIgnoresReserved(t *testing.T) {
	channels := NewChannelParamsMap()
	channels.Update(1, ChannelParams{BaseFrequency: 851_000_000, SpacingHz: 12_500})

	sel := NewTalkgroupSelection(nil)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 1}, TalkgroupNone, channels)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 1}, TalkgroupAllCall, channels)

	if _, _, ok := sel.Pick(); ok {
		t.Fatalf("Pick() ok = true, want false: only reserved talkgroups were observed")
	}
}

func TestTalkgroupSelectionPendingResolvesAfterIdentUpdate(t *testing.T) {
	channels := NewChannelParamsMap()

	sel := NewTalkgroupSelection(nil)
	sel.Observe(ChannelIdentifier{ID: 7, Number: 5}, Talkgroup(42), channels)

	if _, _, ok := sel.Pick(); ok {
		t.Fatalf("Pick() ok = true before the channel id ever resolved")
	}

	channels.Update(7, ChannelParams{BaseFrequency: 856_000_000, SpacingHz: 12_500})
	sel.ResolvePending(channels)

	tg, _, ok := sel.Pick()
	if !ok || tg != Talkgroup(42) {
		t.Fatalf("Pick() = (%d, %v) after ResolvePending, want (42, true)", tg, ok)
	}
}

func TestTalkgroupSelectionPriorityFuncBreaksTie(t *testing.T) {
	channels := NewChannelParamsMap()
	channels.Update(1, ChannelParams{BaseFrequency: 851_000_000, SpacingHz: 12_500})

	priority := func(tg Talkgroup) int {
		if tg == Talkgroup(200) {
			return 10
		}
		return 0
	}

	sel := NewTalkgroupSelection(priority)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 1}, Talkgroup(100), channels)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 2}, Talkgroup(200), channels)

	tg, _, ok := sel.Pick()
	if !ok || tg != Talkgroup(200) {
		t.Fatalf("Pick() = (%d, %v), want (200, true): higher-priority talkgroup should win", tg, ok)
	}
}

func TestTalkgroupSelectionResetClearsState(t *testing.T) {
	channels := NewChannelParamsMap()
	channels.Update(1, ChannelParams{BaseFrequency: 851_000_000, SpacingHz: 12_500})

	sel := NewTalkgroupSelection(nil)
	sel.Observe(ChannelIdentifier{ID: 1, Number: 1}, Talkgroup(100), channels)
	sel.Reset()

	if _, _, ok := sel.Pick(); ok {
		t.Fatalf("Pick() ok = true after Reset(), want false")
	}
}

// mustRxFreq is a test helper resolving a channel id through the map,
// failing the test if it doesn't resolve.
func (m *ChannelParamsMap) mustRxFreq(t *testing.T, ch ChannelIdentifier) Frequency {
	t.Helper()
	freq, ok := m.RxFreq(ch)
	if !ok {
		t.Fatalf("RxFreq(%+v) did not resolve", ch)
	}
	return freq
}
