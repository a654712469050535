package main

// ReceiverMode is the hop policy's runtime mode.
type ReceiverMode int

const (
	// ModeIdle: no grant observed yet, not collecting, counter is 0.
	ModeIdle ReceiverMode = iota
	// ModeCollecting: accumulating grants for up to tgselect_window samples.
	ModeCollecting
	// ModeLocked: tuned to a traffic channel, watchdog armed.
	ModeLocked
	// ModePaused: voice ended, waiting up to pause_window samples to resume.
	ModePaused
)

func (m ReceiverMode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeCollecting:
		return "collecting"
	case ModeLocked:
		return "locked"
	case ModePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ReceiverPolicy holds the hop-decision parameters and the monotone sample
// counter that bounds the current mode, exactly as spec §3 describes.
type ReceiverPolicy struct {
	TgselectWindow uint64
	WatchdogWindow uint64
	PauseWindow    uint64

	mode    ReceiverMode
	counter uint64
}

// NewReceiverPolicy builds a policy with the given window sizes, in
// baseband samples, starting Idle.
func NewReceiverPolicy(tgselect, watchdog, pause uint64) *ReceiverPolicy {
	return &ReceiverPolicy{
		TgselectWindow: tgselect,
		WatchdogWindow: watchdog,
		PauseWindow:    pause,
		mode:           ModeIdle,
	}
}

// Mode reports the current mode.
func (p *ReceiverPolicy) Mode() ReceiverMode { return p.mode }

// Counter reports the current sample counter (invariant: bounded by the
// window for the current mode; always 0 in Idle).
func (p *ReceiverPolicy) Counter() uint64 { return p.counter }

// Reset returns to Idle with the counter cleared.
func (p *ReceiverPolicy) Reset() {
	p.mode = ModeIdle
	p.counter = 0
}

// BeginCollecting arms the tgselect window; called on the first qualifying
// grant seen while Idle.
func (p *ReceiverPolicy) BeginCollecting() {
	p.mode = ModeCollecting
	p.counter = 0
}

// Lock transitions to Locked and arms the watchdog window, called right
// after a hop Tune is issued.
func (p *ReceiverPolicy) Lock() {
	p.mode = ModeLocked
	p.counter = 0
}

// Pause transitions to Paused and arms the pause window, called on
// end-of-transmission/silence while Locked.
func (p *ReceiverPolicy) Pause() {
	p.mode = ModePaused
	p.counter = 0
}

// Resume returns from Paused back to Locked (voice resumed in time),
// re-arming the watchdog window.
func (p *ReceiverPolicy) Resume() {
	p.mode = ModeLocked
	p.counter = 0
}

// tick is called once per baseband sample; it reports whether the current
// mode's window has expired on this sample.
func (p *ReceiverPolicy) tick() bool {
	if p.mode == ModeIdle {
		return false
	}

	p.counter++

	var window uint64
	switch p.mode {
	case ModeCollecting:
		window = p.TgselectWindow
	case ModeLocked:
		window = p.WatchdogWindow
	case ModePaused:
		window = p.PauseWindow
	}

	return p.counter >= window
}
