package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"
)

// replaySampleBufSize mirrors the original implementation's fixed read
// buffer (original_source/src/replay.rs: `[0; 32768]` bytes, here sized in
// samples of 4 bytes each).
const replaySampleBufSize = 32768 / 4

// RunReplay reads raw f32le/48kHz/mono baseband samples from path (no
// header) and feeds them through decoder single-threaded, writing any
// voice frames to sink (spec §9 design notes; ground: original_source's
// replay.rs `ReplayReceiver`, adapted from its own event loop into the
// same Decoder boundary the live pipeline uses).
//
// Replay deliberately bypasses the Controller/Receiver-policy/Hub
// machinery: there is no tuner to hop and no HTTP surface to serve, only
// a decoder driven start-to-finish over a fixed recording (test scenario
// S1: replay output is a pure function of its input).
func RunReplay(path string, sink *os.File, decoder Decoder, logger *log.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, replaySampleBufSize*4)

	var stats DecoderStats
	var sampleBuf [4]byte
	framesWritten := 0

	for {
		sample, err := readFloat32LE(r, &sampleBuf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read replay sample: %w", err)
		}

		event, ok := decoder.Feed(sample)
		if !ok {
			continue
		}
		stats = decoder.Stats()

		switch event.Kind {
		case EventVoiceFrame:
			if err := writeFloat32LE(sink, event.Voice.PCM); err != nil {
				return fmt.Errorf("replay audio write: %w", err)
			}
			framesWritten++
		case EventDecodeError:
			logger.Printf("replay decode error: %v", event.Err)
		}
	}

	logger.Printf("replay finished: %d frames decoded, %d sync losses, %d errors, %d voice frames written",
		stats.FramesDecoded, stats.SyncLosses, stats.Errors, framesWritten)
	return nil
}

func readFloat32LE(r io.Reader, buf *[4]byte) (float32, error) {
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}
