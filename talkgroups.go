package main

// PriorityFunc scores a talkgroup for selection purposes; higher wins. The
// exact scoring policy is not specified (spec §9 Open Questions), so it is
// pluggable. The default treats every talkgroup as equal priority.
type PriorityFunc func(Talkgroup) int

// DefaultPriority gives every (non-reserved) talkgroup the same score, so
// TalkgroupSelection.Pick resolves ties by first-seen order.
func DefaultPriority(Talkgroup) int { return 0 }

type pendingGrant struct {
	ch ChannelIdentifier
	tg Talkgroup
}

// TalkgroupSelection accumulates grants observed during a Collecting
// window and picks the highest-priority one at window close (spec §3, §4.4).
type TalkgroupSelection struct {
	priority PriorityFunc

	// seen maps talkgroup -> resolved frequency, in first-seen order via
	// order. Multiple grants to the same talkgroup count once (spec §4.4
	// tie-break).
	seen  map[Talkgroup]Frequency
	order []Talkgroup

	// pending holds grants whose channel id wasn't resolvable yet; they
	// become eligible if the matching IDENT_UPDATE arrives before the
	// window closes.
	pending []pendingGrant
}

// NewTalkgroupSelection builds an empty accumulator using the given
// priority function (DefaultPriority if nil).
func NewTalkgroupSelection(priority PriorityFunc) *TalkgroupSelection {
	if priority == nil {
		priority = DefaultPriority
	}
	return &TalkgroupSelection{
		priority: priority,
		seen:     make(map[Talkgroup]Frequency),
	}
}

// Reset clears all accumulated state for the next Collecting window.
func (s *TalkgroupSelection) Reset() {
	s.seen = make(map[Talkgroup]Frequency)
	s.order = nil
	s.pending = nil
}

// Observe records a channel grant. If ch cannot yet be resolved to a
// frequency via channels, the grant is queued as pending; ResolvePending
// (called whenever the ChannelParamsMap gains an entry) may later make it
// eligible.
func (s *TalkgroupSelection) Observe(ch ChannelIdentifier, tg Talkgroup, channels *ChannelParamsMap) {
	if tg.Reserved() {
		return
	}

	freq, ok := channels.RxFreq(ch)
	if !ok {
		s.pending = append(s.pending, pendingGrant{ch: ch, tg: tg})
		return
	}

	s.record(tg, freq)
}

// ResolvePending re-attempts resolution of any grants that arrived before
// their channel id's IDENT_UPDATE; call after the ChannelParamsMap changes.
func (s *TalkgroupSelection) ResolvePending(channels *ChannelParamsMap) {
	if len(s.pending) == 0 {
		return
	}

	remaining := s.pending[:0]
	for _, g := range s.pending {
		if freq, ok := channels.RxFreq(g.ch); ok {
			s.record(g.tg, freq)
		} else {
			remaining = append(remaining, g)
		}
	}
	s.pending = remaining
}

func (s *TalkgroupSelection) record(tg Talkgroup, freq Frequency) {
	if _, exists := s.seen[tg]; !exists {
		s.order = append(s.order, tg)
	}
	// Always refresh the frequency in case a later grant updates it.
	s.seen[tg] = freq
}

// Pick returns the highest-priority talkgroup observed (ties broken by
// first-seen order) and its frequency, or ok=false if nothing was
// observed. Anything still pending at window close is dropped (spec §4.4).
func (s *TalkgroupSelection) Pick() (tg Talkgroup, freq Frequency, ok bool) {
	best := -1
	bestScore := 0

	for i, candidate := range s.order {
		score := s.priority(candidate)
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best == -1 {
		return 0, 0, false
	}

	tg = s.order[best]
	return tg, s.seen[tg], true
}
