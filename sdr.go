package main

// The RTL-SDR user-space driver (tune, gain, AGC, PPM, async read) is an
// external collaborator (spec §1 Non-goals). This file defines the
// boundary the Controller and Reader tasks use, shaped after how
// `rtlsdr_mt::open` splits a single device into a control handle and a
// read handle in the original implementation (original_source/src/main.rs)
// and after the cgo librtlsdr bindings in the example pack
// (other_examples/bc5a330e_hztools-go-sdr__rtl-rtlsdr.go.go,
// other_examples/ee8ce340_saviobatista-go1090__rtlsdr.go.go).

// SDRControl is the synchronous control surface of an open SDR device.
// Controller is the sole owner of this handle (spec §4.1, §5).
type SDRControl interface {
	SetCenterFrequency(Frequency) error
	SetPPM(ppm int) error
	SetGainTenthsDB(gain int) error
	EnableAGC() error
	// CancelAsync aborts any in-flight ReadAsync call, unblocking the
	// Reader's callback loop so it can be re-entered after a retune.
	CancelAsync() error
	Close() error
}

// SDRReader is the asynchronous read surface of an open SDR device.
// Reader is the sole owner of this handle (spec §4.2, §5).
type SDRReader interface {
	// ReadAsync blocks, invoking cb with each owned IQ block as it
	// arrives, until the paired SDRControl's CancelAsync or Close is
	// called (at which point it returns).
	ReadAsync(blockSize int, cb func(iq []byte)) error
}

// DeviceInfo names one attached SDR, as enumerated by --device list.
type DeviceInfo struct {
	Index uint
	Name  string
}
