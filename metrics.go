package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus counters/gauges for the pipeline: throughput
// counters (blocks, samples, frames, commands, hops) alongside the
// "counted" outcomes of spec §7's error taxonomy (decode errors, dropped
// IQ blocks, dropped hub/audio sends); none of it is ever surfaced over
// the SSE/REST surface, only via GET /metrics (domain-stack addition, SPEC_FULL §4.8/§6).
//
// Ground: teacher's prometheus.go (promauto-built GaugeVec/CounterVec
// fields on a struct, registered once at startup).
type Metrics struct {
	iqBlocksRead    prometheus.Counter
	iqBlocksDropped prometheus.Counter

	basebandSamples prometheus.Counter

	decodeErrors   prometheus.Counter
	tsbkByOpcode   *prometheus.CounterVec
	lcByOpcode     *prometheus.CounterVec
	voiceFrames    prometheus.Counter

	audioFramesWritten prometheus.Counter
	audioSendDropped   prometheus.Counter

	hubEventsSent    prometheus.Counter
	hubEventsDropped prometheus.Counter
	hubSubscribers   prometheus.Gauge

	controllerCommands prometheus.Counter
	hopCount            prometheus.Counter
}

// NewMetrics registers every collector against reg (use
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		iqBlocksRead: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_iq_blocks_read_total",
			Help: "IQ blocks delivered by the SDR read callback.",
		}),
		iqBlocksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_iq_blocks_dropped_total",
			Help: "IQ blocks dropped because the demodulator was behind.",
		}),
		basebandSamples: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_baseband_samples_total",
			Help: "Baseband samples produced by the demodulator.",
		}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_decode_errors_total",
			Help: "P25 decode errors reported by the decoder.",
		}),
		tsbkByOpcode: f.NewCounterVec(prometheus.CounterOpts{
			Name: "p25rx_tsbk_total",
			Help: "TSBKs processed, by opcode.",
		}, []string{"opcode"}),
		lcByOpcode: f.NewCounterVec(prometheus.CounterOpts{
			Name: "p25rx_lc_total",
			Help: "Link control frames processed, by opcode.",
		}, []string{"opcode"}),
		voiceFrames: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_voice_frames_total",
			Help: "Voice frames yielded by the decoder.",
		}),
		audioFramesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_audio_frames_written_total",
			Help: "Voice frames written to the audio sink.",
		}),
		audioSendDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_audio_send_dropped_total",
			Help: "Voice frames dropped because the audio channel was full.",
		}),
		hubEventsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_hub_events_sent_total",
			Help: "Events sent on the hub channel.",
		}),
		hubEventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_hub_events_dropped_total",
			Help: "Events dropped because the hub channel was full.",
		}),
		hubSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "p25rx_hub_subscribers",
			Help: "Live SSE subscribers.",
		}),
		controllerCommands: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_controller_commands_total",
			Help: "Commands issued to the SDR controller.",
		}),
		hopCount: f.NewCounter(prometheus.CounterOpts{
			Name: "p25rx_hop_total",
			Help: "Number of times the receiver hopped to a traffic channel.",
		}),
	}
}
