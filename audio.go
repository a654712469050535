package main

import (
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// AudioTask writes decoded voice frames to the configured sink as raw
// interleaved f32le PCM at 8 kHz mono (spec §4.5, §6). Write failure is
// fatal: the sink is local I/O and the user explicitly asked for audio.
type AudioTask struct {
	sink    *os.File
	frames  <-chan VoiceFrame
	log     *log.Logger
	metrics *Metrics
}

// OpenAudioSink opens path for writing, creating it as a regular file if
// absent. If path already exists as a named pipe, it is opened with
// O_NONBLOCK via golang.org/x/sys/unix so the open never waits for a
// reader; if no reader has the FIFO open yet, the open fails with an error
// instead (ground: teacher's audio.go imports golang.org/x/sys/unix
// for low-level socket/fd options; adapted here to local file/FIFO
// semantics, per SPEC_FULL §4.8).
func OpenAudioSink(path string) (*os.File, error) {
	info, statErr := os.Stat(path)
	isFIFO := statErr == nil && info.Mode()&os.ModeNamedPipe != 0

	if !isFIFO {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audio sink %q: %w", path, err)
		}
		return f, nil
	}

	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audio fifo %q: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}

// NewAudioTask builds an Audio task writing frames to sink.
func NewAudioTask(sink *os.File, frames <-chan VoiceFrame, logger *log.Logger, metrics *Metrics) *AudioTask {
	return &AudioTask{sink: sink, frames: frames, log: logger, metrics: metrics}
}

// Run consumes voice frames until frames is closed, blocking on the
// channel and on the sink write (spec §5).
func (a *AudioTask) Run() {
	for vf := range a.frames {
		if err := writeFloat32LE(a.sink, vf.PCM); err != nil {
			a.log.Fatalf("audio sink write failed: %v", err)
		}
		a.metrics.audioFramesWritten.Inc()
	}
}
