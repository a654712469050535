package main

// P25 physical-layer decoding (symbol sync, trellis/RS/BCH FEC, the IMBE
// vocoder, TSBK/LC framing) is an external collaborator out of scope for
// this repository (spec §1 Non-goals; see decoder.go). stubDecoder is the
// placeholder production implementation wired in main.go until a real
// decoder library is vendored behind the Decoder interface: it advances
// cleanly and reports itself, but never synthesizes TSBK/LC/voice events
// on its own.
type stubDecoder struct {
	stats DecoderStats
}

// NewExternalDecoder returns the Decoder the live and replay pipelines
// drive with baseband samples.
func NewExternalDecoder() Decoder {
	return &stubDecoder{}
}

func (d *stubDecoder) Feed(sample float32) (DecoderEvent, bool) {
	return DecoderEvent{}, false
}

func (d *stubDecoder) Stats() DecoderStats {
	return d.stats
}

func (d *stubDecoder) Version() string {
	return minDecoderVersion
}
