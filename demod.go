package main

import (
	"io"
	"log"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// SDRSampleRate is the IQ sample rate requested from the RTL-SDR (spec §6,
// "--ppm" context); a common, well-supported rate for R820T-family tuners.
const SDRSampleRate uint32 = 1_200_000

// BasebandSampleRate is the P25 baseband sample rate (spec §3, §4.3).
const BasebandSampleRate = 48_000

// decimationFactor converts the SDR sample rate down to baseband.
const decimationFactor = int(SDRSampleRate) / BasebandSampleRate

// sigPowerEveryNBlocks throttles the sigPower HubEvent so it doesn't
// flood the hub channel at baseband block rate.
const sigPowerEveryNBlocks = 4

// BasebandBlock is one decimated, FM-demodulated block of real samples,
// the Demodulator's sole output (spec §4.3).
type BasebandBlock struct {
	Samples []float32
}

// DemodTask converts raw IQ bytes into FM-demodulated baseband float
// samples (spec §4.3). It is the only CPU-intensive pipeline stage besides
// voice decoding.
type DemodTask struct {
	iq       <-chan []byte
	baseband chan<- BasebandBlock
	hub      chan<- HubEvent

	filter []float64 // channelizing low-pass FIR taps, Hamming-windowed

	// tail holds the last len(filter)-1 raw IQ samples from the previous
	// block, prepended to each new block before filtering so the FIR has
	// real history at the block boundary instead of an implicit zero-pad
	// (spec §4.3: the channelizer runs across block boundaries).
	tail []complex128

	writer io.Writer // optional --write tee, f32le/48kHz/mono, no header

	blockCount uint64

	log     *log.Logger
	metrics *Metrics
}

// NewDemodTask builds a Demodulator reading iq, writing decimated baseband
// blocks to baseband and periodic sigPower events to hub. writer may be
// nil (no --write tee configured).
func NewDemodTask(iq <-chan []byte, baseband chan<- BasebandBlock, hub chan<- HubEvent, writer io.Writer, logger *log.Logger, metrics *Metrics) *DemodTask {
	return &DemodTask{
		iq:       iq,
		baseband: baseband,
		hub:      hub,
		filter:   channelizingFilter(64, 0.5/float64(decimationFactor)),
		tail:     make([]complex128, 0),
		writer:   writer,
		log:      logger,
		metrics:  metrics,
	}
}

// channelizingFilter builds a windowed-sinc low-pass FIR with the given
// number of taps and normalized cutoff (cycles per sample, i.e. a fraction
// of the input sample rate), using a
// Hamming window (ground: gonum.org/v1/gonum/dsp/window, wired per
// SPEC_FULL §4.8 since the decimating channelizer is named in spec §4.3).
func channelizingFilter(taps int, cutoff float64) []float64 {
	coef := make([]float64, taps)
	mid := float64(taps-1) / 2

	for i := range coef {
		x := float64(i) - mid
		if x == 0 {
			coef[i] = 2 * cutoff
		} else {
			coef[i] = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
	}

	window.Hamming(coef)

	sum := floats.Sum(coef)
	if sum != 0 {
		floats.Scale(1/sum, coef)
	}

	return coef
}

// Run consumes IQ blocks until iq is closed. It blocks on that channel and
// on the send of each baseband block; sigPower events are sent
// non-blockingly and dropped when the hub channel is full.
func (d *DemodTask) Run() {
	var lastPhasor complex128
	havePrev := false

	for iq := range d.iq {
		baseband, power := d.process(iq, &lastPhasor, &havePrev)

		if d.writer != nil {
			if err := writeFloat32LE(d.writer, baseband); err != nil {
				d.log.Printf("baseband tee write failed: %v", err)
				d.writer = nil // don't keep retrying a broken tee
			}
		}

		d.metrics.basebandSamples.Add(float64(len(baseband)))
		d.blockCount++

		if d.blockCount%sigPowerEveryNBlocks == 0 {
			select {
			case d.hub <- HubEvent{Kind: HubEventSigPower, SigPower: power}:
			default:
				d.metrics.hubEventsDropped.Inc()
			}
		}

		d.baseband <- BasebandBlock{Samples: baseband}
	}

	close(d.baseband)
}

// process converts one raw IQ byte block into a decimated, FM-demodulated
// baseband block and its RMS power in dBFS.
func (d *DemodTask) process(iq []byte, lastPhasor *complex128, havePrev *bool) ([]float32, float32) {
	n := len(iq) / 2
	complexSamples := make([]complex128, n)
	for i := 0; i < n; i++ {
		// RTL-SDR delivers unsigned 8-bit samples centered on 127.5.
		re := (float64(iq[2*i]) - 127.5) / 127.5
		im := (float64(iq[2*i+1]) - 127.5) / 127.5
		complexSamples[i] = complex(re, im)
	}

	// Prepend the previous block's tail so the filter sees real history
	// at the boundary, then filter the extended signal and keep only the
	// portion aligned with this block's own samples.
	extended := make([]complex128, len(d.tail)+len(complexSamples))
	copy(extended, d.tail)
	copy(extended[len(d.tail):], complexSamples)

	filteredExtended := convolve(extended, d.filter)
	filtered := filteredExtended[len(d.tail):]

	tailLen := len(d.filter) - 1
	if tailLen > len(extended) {
		tailLen = len(extended)
	}
	d.tail = append([]complex128(nil), extended[len(extended)-tailLen:]...)

	decimated := make([]complex128, 0, len(filtered)/decimationFactor+1)
	for i := 0; i < len(filtered); i += decimationFactor {
		decimated = append(decimated, filtered[i])
	}

	demod := make([]float32, len(decimated))
	power := make([]float64, len(decimated))

	for i, s := range decimated {
		if !*havePrev {
			*lastPhasor = s
			*havePrev = true
		}
		demod[i] = float32(cmplx.Phase(s * cmplx.Conj(*lastPhasor)))
		power[i] = cmplx.Abs(s) * cmplx.Abs(s)
		*lastPhasor = s
	}

	rms := 0.0
	if len(power) > 0 {
		rms = math.Sqrt(floats.Sum(power) / float64(len(power)))
	}
	dB := float32(-150)
	if rms > 0 {
		dB = float32(20 * math.Log10(rms))
	}

	return demod, dB
}

// convolve applies a real FIR filter to a complex signal (direct form,
// sized for the small per-block buffers used here; no FFT overlap-save is
// needed at this block size).
func convolve(x []complex128, taps []float64) []complex128 {
	out := make([]complex128, len(x))
	for i := range x {
		var acc complex128
		for k, c := range taps {
			j := i - k
			if j < 0 {
				break
			}
			acc += x[j] * complex(c, 0)
		}
		out[i] = acc
	}
	return out
}
