package main

import (
	"encoding/binary"
	"io"
	"math"
)

// writeFloat32LE writes samples as raw interleaved 32-bit little-endian
// floats, the wire format used for both the --write baseband tee and the
// --audio sink (spec §6).
func writeFloat32LE(w io.Writer, samples []float32) error {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	_, err := w.Write(buf)
	return err
}
