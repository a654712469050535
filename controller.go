package main

import "log"

// ControllerTask owns the SDR tuner handle and serializes all mutations
// against it (spec §4.1). It is the only task that ever touches the
// control handle.
type ControllerTask struct {
	dev     SDRControl
	cmds    <-chan ControlCommand
	log     *log.Logger
	metrics *Metrics
}

// NewControllerTask builds a Controller consuming cmds against dev.
func NewControllerTask(dev SDRControl, cmds <-chan ControlCommand, logger *log.Logger, metrics *Metrics) *ControllerTask {
	return &ControllerTask{dev: dev, cmds: cmds, log: logger, metrics: metrics}
}

// Run consumes commands until cmds is closed. Tuner errors are logged and
// the command dropped (spec §4.1, §7): there is no reply channel, so the
// Receiver finds out only indirectly, via its own watchdog.
func (c *ControllerTask) Run() {
	for cmd := range c.cmds {
		c.metrics.controllerCommands.Inc()

		switch cmd.Kind {
		case ControlTune:
			if err := c.dev.SetCenterFrequency(cmd.Freq); err != nil {
				c.log.Printf("tune to %s failed: %v", cmd.Freq, err)
			}
		case ControlReset:
			if err := c.dev.CancelAsync(); err != nil {
				c.log.Printf("reset (cancel async read) failed: %v", err)
			}
		}
	}
}
