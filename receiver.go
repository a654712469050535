package main

import "log"

// ReceiverTask is the brains of the pipeline: it drives the P25 decoder,
// applies the hop policy, selects talkgroups, commands the Controller, and
// produces audio frames and hub events (spec §4.4).
type ReceiverTask struct {
	baseband <-chan BasebandBlock
	cmds     <-chan RecvCommand
	hub      chan<- HubEvent
	ctl      chan<- ControlCommand
	audio    chan<- VoiceFrame

	decoder    Decoder
	policy     *ReceiverPolicy
	talkgroups *TalkgroupSelection
	channels   *ChannelParamsMap

	ctlFreq    Frequency
	hopEnabled bool

	log     *log.Logger
	metrics *Metrics
}

// NewReceiverTask wires a Receiver. ctlFreq is the initial control channel
// frequency (spec §6 --freq); hopEnabled is false under --nohop.
func NewReceiverTask(
	baseband <-chan BasebandBlock,
	cmds <-chan RecvCommand,
	hub chan<- HubEvent,
	ctl chan<- ControlCommand,
	audio chan<- VoiceFrame,
	decoder Decoder,
	policy *ReceiverPolicy,
	talkgroups *TalkgroupSelection,
	ctlFreq Frequency,
	hopEnabled bool,
	logger *log.Logger,
	metrics *Metrics,
) *ReceiverTask {
	return &ReceiverTask{
		baseband:   baseband,
		cmds:       cmds,
		hub:        hub,
		ctl:        ctl,
		audio:      audio,
		decoder:    decoder,
		policy:     policy,
		talkgroups: talkgroups,
		channels:   NewChannelParamsMap(),
		ctlFreq:    ctlFreq,
		hopEnabled: hopEnabled,
		log:        logger,
		metrics:    metrics,
	}
}

// Run waits on its two input channels (spec §5): baseband samples (the hot
// path) and control commands from the Hub. Hub and audio sends never
// block; a Tune sent to the Controller channel blocks while that channel
// is full.
func (r *ReceiverTask) Run() {
	// Commit the initial control frequency the same way a SetControlFreq
	// command would, so the first Tune and the HubState converge.
	r.setControlFreq(r.ctlFreq)
	r.tune(r.ctlFreq)

	for {
		select {
		case cmd, ok := <-r.cmds:
			if !ok {
				r.cmds = nil
				continue
			}
			r.handleCommand(cmd)

		case block, ok := <-r.baseband:
			if !ok {
				return
			}
			for _, sample := range block.Samples {
				r.feedSample(sample)
			}
		}
	}
}

func (r *ReceiverTask) handleCommand(cmd RecvCommand) {
	switch cmd.Kind {
	case RecvSetControlFreq:
		r.setControlFreq(cmd.Freq)

		// "SetControlFreq commands are accepted in any mode; ... if
		// currently in ControlListening, immediately re-tune" (spec §4.4).
		if r.inControlListening() {
			r.tune(cmd.Freq)
		}
	}
}

func (r *ReceiverTask) setControlFreq(f Frequency) {
	r.ctlFreq = f
	r.sendHub(HubEvent{Kind: HubEventState, State: StateEvent{Kind: StateUpdateCtlFreq, Freq: f}})
}

func (r *ReceiverTask) inControlListening() bool {
	switch r.policy.Mode() {
	case ModeIdle, ModeCollecting:
		return true
	default:
		return false
	}
}

// feedSample advances the decoder by one baseband sample and applies any
// resulting event, then the policy's window tick (spec §4.4).
func (r *ReceiverTask) feedSample(sample float32) {
	event, ok := r.decoder.Feed(sample)
	if ok {
		r.handleEvent(event)
	}

	if r.policy.tick() {
		r.handleExpiry()
	}
}

func (r *ReceiverTask) handleEvent(event DecoderEvent) {
	switch event.Kind {
	case EventTsbk:
		r.handleTsbk(event.Tsbk)

	case EventLinkControl:
		r.metrics.lcByOpcode.WithLabelValues(lcOpcodeName(event.Lc.Opcode)).Inc()
		r.sendHub(HubEvent{Kind: HubEventLinkControl, Lc: event.Lc})

	case EventVoiceFrame:
		r.metrics.voiceFrames.Inc()
		r.sendAudio(event.Voice)

		switch r.policy.Mode() {
		case ModeLocked:
			r.policy.Lock() // re-arm the watchdog
		case ModePaused:
			r.policy.Resume() // voice resumed before pause_window expired
		}

	case EventEndOfTransmission:
		if r.policy.Mode() == ModeLocked {
			r.policy.Pause()
		}

	case EventDecodeError:
		r.metrics.decodeErrors.Inc()
	}
}

func (r *ReceiverTask) handleTsbk(tsbk TsbkFields) {
	r.metrics.tsbkByOpcode.WithLabelValues(tsbkOpcodeName(tsbk.Opcode)).Inc()

	if tsbk.Opcode == OpcodeIdentUpdate {
		r.channels.Update(tsbk.IdentID, tsbk.IdentParams)
		r.talkgroups.ResolvePending(r.channels)
		r.sendHub(HubEvent{
			Kind: HubEventState,
			State: StateEvent{
				Kind:   StateUpdateChannelParams,
				Ident:  tsbk.IdentID,
				Params: tsbk.IdentParams,
			},
		})
		return
	}

	r.sendHub(HubEvent{Kind: HubEventTrunkingControl, Tsbk: tsbk})

	if tsbk.Opcode.IsChannelGrant() && r.hopEnabled {
		r.registerGrant(tsbk.GrantChannel, tsbk.GrantTalkgroup)
	}
}

// registerGrant accumulates a channel grant under the hop policy (spec §4.4
// steps 1-2).
func (r *ReceiverTask) registerGrant(ch ChannelIdentifier, tg Talkgroup) {
	switch r.policy.Mode() {
	case ModeIdle:
		r.policy.BeginCollecting()
		r.talkgroups.Reset()
		r.talkgroups.Observe(ch, tg, r.channels)
	case ModeCollecting:
		r.talkgroups.Observe(ch, tg, r.channels)
	default:
		// Already on a traffic channel (Locked/Paused): control-channel
		// grants are ignored until we return to ControlListening.
	}
}

// handleExpiry runs when the current mode's window has elapsed (spec §4.4
// steps 3-4, and the watchdog/pause transitions).
func (r *ReceiverTask) handleExpiry() {
	switch r.policy.Mode() {
	case ModeCollecting:
		tg, freq, ok := r.talkgroups.Pick()
		if !ok {
			r.policy.Reset()
			return
		}

		r.tune(freq)
		r.policy.Lock()
		r.metrics.hopCount.Inc()
		r.sendHub(HubEvent{Kind: HubEventCurFreq, CurFreq: freq})
		r.sendHub(HubEvent{Kind: HubEventTalkGroup, TalkGroup: tg})

	case ModeLocked, ModePaused:
		// Watchdog or pause window expired with no (further) voice:
		// abandon the traffic channel and return to control listening
		// (spec §4.4, invariant 7).
		r.policy.Reset()
		r.tune(r.ctlFreq)
	}
}

func (r *ReceiverTask) tune(f Frequency) {
	r.safeSendCtl(ControlCommand{Kind: ControlTune, Freq: f})
}

// safeSendCtl sends to the Controller channel. A failed send there is
// fatal (spec §4.4, §7): the pipeline cannot continue correctly without a
// working control path.
func (r *ReceiverTask) safeSendCtl(cmd ControlCommand) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Fatalf("controller channel send failed: %v", rec)
		}
	}()
	r.ctl <- cmd
}

// sendHub attempts a non-blocking send; failure is counted, never fatal
// (spec §4.4, §7).
func (r *ReceiverTask) sendHub(e HubEvent) {
	select {
	case r.hub <- e:
		r.metrics.hubEventsSent.Inc()
	default:
		r.metrics.hubEventsDropped.Inc()
	}
}

// sendAudio attempts a non-blocking send; failure is counted, never fatal
// (spec §4.4, §7). In a healthy pipeline the Audio task drains fast enough
// that this channel is never actually full (spec §5).
func (r *ReceiverTask) sendAudio(vf VoiceFrame) {
	select {
	case r.audio <- vf:
	default:
		r.metrics.audioSendDropped.Inc()
	}
}

func tsbkOpcodeName(o TsbkOpcode) string {
	switch o {
	case OpcodeGroupVoiceGrant:
		return "group_voice_grant"
	case OpcodeGroupVoiceGrantUpdate:
		return "group_voice_grant_update"
	case OpcodeGroupVoiceGrantUpdateExplicit:
		return "group_voice_grant_update_explicit"
	case OpcodeIdentUpdate:
		return "ident_update"
	case OpcodeRfssStatusBroadcast:
		return "rfss_status_broadcast"
	case OpcodeNetworkStatusBroadcast:
		return "network_status_broadcast"
	case OpcodeAltControlChannel:
		return "alt_control_channel"
	case OpcodeAdjacentSite:
		return "adjacent_site"
	case OpcodeLocRegResponse:
		return "loc_reg_response"
	case OpcodeUnitRegResponse:
		return "unit_reg_response"
	case OpcodeUnitDeregAck:
		return "unit_dereg_ack"
	default:
		return "unknown"
	}
}

func lcOpcodeName(o LcOpcode) string {
	switch o {
	case LcOpcodeGroupVoiceTraffic:
		return "group_voice_traffic"
	case LcOpcodeRfssStatusBroadcast:
		return "rfss_status_broadcast"
	case LcOpcodeAdjacentSite:
		return "adjacent_site"
	case LcOpcodeAltControlChannel:
		return "alt_control_channel"
	default:
		return "unknown"
	}
}
