package main

import (
	"math"
	"testing"
)

func TestChannelizingFilterIsNormalized(t *testing.T) {
	taps := channelizingFilter(64, 0.5/float64(decimationFactor))

	sum := 0.0
	for _, c := range taps {
		sum += c
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("filter coefficients sum to %v, want 1.0 (unity DC gain)", sum)
	}
	if len(taps) != 64 {
		t.Fatalf("len(taps) = %d, want 64", len(taps))
	}
}

// TestProcessDecimatesByTheConfiguredFactor asserts the demodulator's
// output block length matches decimationFactor exactly (spec §4.3).
func TestProcessDecimatesByTheConfiguredFactor(t *testing.T) {
	d := &DemodTask{filter: channelizingFilter(64, 0.5/float64(decimationFactor))}

	n := decimationFactor * 10
	iq := make([]byte, 2*n)
	for i := range iq {
		iq[i] = 127 // silence: centered, zero amplitude
	}

	var lastPhasor complex128
	havePrev := false
	baseband, power := d.process(iq, &lastPhasor, &havePrev)

	if len(baseband) != 10 {
		t.Fatalf("len(baseband) = %d, want %d", len(baseband), 10)
	}
	if power > -20 {
		t.Fatalf("power = %v dB for a near-silent block, want a strongly negative dBFS value", power)
	}
}

func TestConvolveLengthMatchesInput(t *testing.T) {
	x := make([]complex128, 16)
	for i := range x {
		x[i] = complex(float64(i), 0)
	}
	taps := []float64{1, 0, 0}

	out := convolve(x, taps)
	if len(out) != len(x) {
		t.Fatalf("len(convolve(x, taps)) = %d, want %d", len(out), len(x))
	}
	for i := range x {
		if out[i] != x[i] {
			t.Fatalf("identity filter changed sample %d: got %v, want %v", i, out[i], x[i])
		}
	}
}
