package main

import "log"

// IQBlockSize is the number of interleaved IQ bytes librtlsdr delivers per
// asynchronous read callback (spec §4.2). Fixed at compile time, like the
// demodulator's buffers, to bound per-block latency (spec §4.3).
const IQBlockSize = 16 * 32 * 512

// ReaderTask invokes the SDR driver's asynchronous read routine and
// forwards each owned IQ block to the demodulator, non-blockingly (spec
// §4.2, §5). This is the pipeline's sole legal point of sample loss.
type ReaderTask struct {
	dev     SDRReader
	iq      chan<- []byte
	log     *log.Logger
	metrics *Metrics
}

// NewReaderTask builds a Reader that reads from dev and forwards blocks
// onto iq (a small, bounded channel; see spec §5 "Backpressure").
func NewReaderTask(dev SDRReader, iq chan<- []byte, logger *log.Logger, metrics *Metrics) *ReaderTask {
	return &ReaderTask{dev: dev, iq: iq, log: logger, metrics: metrics}
}

// Run blocks inside the driver's async read until the Controller cancels
// it (on Reset) or the device is closed. It never polls (spec §5).
func (r *ReaderTask) Run() {
	for {
		err := r.dev.ReadAsync(IQBlockSize, r.onBlock)
		if err != nil {
			r.log.Printf("async read exited: %v", err)
		}
		// A cancelled read unblocks ReadAsync; the Reader simply re-enters
		// the blocking call.
	}
}

func (r *ReaderTask) onBlock(iq []byte) {
	r.metrics.iqBlocksRead.Inc()

	select {
	case r.iq <- iq:
	default:
		// Demodulator is behind: drop this block rather than stall the
		// USB transfer pipeline (spec §4.2 rationale).
		r.metrics.iqBlocksDropped.Inc()
	}
}
