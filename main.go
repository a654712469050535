package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

// minDecoderVersion is the oldest Decoder.Version() this receiver has been
// validated against; an older decoder only gets a startup warning, never
// a refusal to run (ground: teacher's version_checker.go — "compare a
// reported version against a constraint, log a warning").
const minDecoderVersion = "0.1.0"

func main() {
	var (
		audioPath      = flag.String("audio", "", "destination for audio frames (f32le/8kHz/mono); required, also with --replay")
		gainFlag       = flag.String("gain", "", "tuner gain in tenths of dB, \"auto\", or \"list\"")
		freqFlag       = flag.Uint64("freq", 0, "initial control channel frequency, Hz")
		deviceFlag     = flag.String("device", "", "SDR device index, or \"list\"")
		bind           = flag.String("bind", "0.0.0.0:8025", "HTTP bind address")
		ppm            = flag.Int("ppm", 0, "frequency offset, ppm")
		nohop          = flag.Bool("nohop", false, "disable trunking hop")
		pauseTimeout   = flag.Float64("pause-timeout", 1.0, "seconds to wait for voice to resume before abandoning a traffic channel")
		watchdogTimeout = flag.Float64("watchdog-timeout", 2.0, "seconds without voice on a traffic channel before abandoning it")
		tgselectTimeout = flag.Float64("tgselect-timeout", 0.5, "seconds to collect channel grants before picking a talkgroup")
		replayPath     = flag.String("replay", "", "read baseband samples from FILE instead of the SDR (single-threaded replay)")
		writePath      = flag.String("write", "", "tee baseband samples to FILE (f32le/48kHz/mono); .gz suffix compresses")
		configPath     = flag.String("config", "", "optional YAML file supplying defaults for non-required flags")
		verbose        countFlag
	)
	flag.Var(&verbose, "verbose", "increase log verbosity (repeatable)")
	flag.Var(&verbose, "v", "shorthand for --verbose")
	flag.Parse()

	logger := log.New(os.Stderr, "[p25rx] ", log.LstdFlags)

	var cfg *Config
	if *configPath != "" {
		var err error
		cfg, err = LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		applyConfigDefaults(cfg, bind, ppm, nohop, pauseTimeout, watchdogTimeout, tgselectTimeout)
	}

	if *deviceFlag == "list" {
		for _, d := range ListRTLSDRDevices() {
			fmt.Printf("%d: %s\n", d.Index, d.Name)
		}
		return
	}
	if *gainFlag == "list" {
		fmt.Println("auto")
		fmt.Println("(tenths-of-dB values depend on the attached tuner)")
		return
	}

	metrics := NewMetrics(prometheus.DefaultRegisterer)

	if *replayPath != "" {
		runReplayMode(*replayPath, *audioPath, logger)
		return
	}

	runLiveMode(liveModeConfig{
		audioPath:       *audioPath,
		gain:            *gainFlag,
		freq:            Frequency(*freqFlag),
		device:          *deviceFlag,
		bind:            *bind,
		ppm:             *ppm,
		hopEnabled:      !*nohop,
		pauseTimeout:    *pauseTimeout,
		watchdogTimeout: *watchdogTimeout,
		tgselectTimeout: *tgselectTimeout,
		writePath:       *writePath,
		ctlFreqRange:    cfg.ctlFreqRangeOrNil(),
		verbosity:       int(verbose),
	}, logger, metrics)
}

func applyConfigDefaults(cfg *Config, bind *string, ppm *int, nohop *bool, pause, watchdog, tgselect *float64) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if cfg.Bind != "" && !set["bind"] {
		*bind = cfg.Bind
	}
	if cfg.PPM != 0 && !set["ppm"] {
		*ppm = cfg.PPM
	}
	if cfg.NoHop && !set["nohop"] {
		*nohop = true
	}
	if cfg.PauseTimeout != 0 && !set["pause-timeout"] {
		*pause = cfg.PauseTimeout
	}
	if cfg.WatchdogTimeout != 0 && !set["watchdog-timeout"] {
		*watchdog = cfg.WatchdogTimeout
	}
	if cfg.TgselectTimeout != 0 && !set["tgselect-timeout"] {
		*tgselect = cfg.TgselectTimeout
	}
}

func runReplayMode(replayPath, audioPath string, logger *log.Logger) {
	if audioPath == "" {
		logger.Fatalf("--audio is required")
	}

	sink, err := OpenAudioSink(audioPath)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer sink.Close()

	decoder := NewExternalDecoder()
	checkDecoderVersion(decoder, logger)

	if err := RunReplay(replayPath, sink, decoder, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

type liveModeConfig struct {
	audioPath       string
	gain            string
	freq            Frequency
	device          string
	bind            string
	ppm             int
	hopEnabled      bool
	pauseTimeout    float64
	watchdogTimeout float64
	tgselectTimeout float64
	writePath       string
	ctlFreqRange    *ctlFreqRange
	verbosity       int
}

func runLiveMode(cfg liveModeConfig, logger *log.Logger, metrics *Metrics) {
	if cfg.audioPath == "" {
		logger.Fatalf("--audio is required")
	}
	if cfg.freq == 0 {
		logger.Fatalf("--freq is required")
	}
	if cfg.device == "" {
		logger.Fatalf("--device is required")
	}

	deviceIndex, err := parseDeviceIndex(cfg.device)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctl, reader, err := OpenRTLSDR(deviceIndex, SDRSampleRate, cfg.ppm)
	if err != nil {
		logger.Fatalf("open SDR: %v", err)
	}

	if err := configureGain(ctl, cfg.gain); err != nil {
		logger.Fatalf("%v", err)
	}
	if err := ctl.SetCenterFrequency(cfg.freq); err != nil {
		logger.Fatalf("initial tune: %v", err)
	}

	sink, err := OpenAudioSink(cfg.audioPath)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	var tee io.Writer
	if cfg.writePath != "" {
		teeFile, err := os.Create(cfg.writePath)
		if err != nil {
			logger.Fatalf("open --write file: %v", err)
		}
		if strings.HasSuffix(cfg.writePath, ".gz") {
			tee = gzip.NewWriter(teeFile)
		} else {
			tee = teeFile
		}
	}

	decoder := NewExternalDecoder()
	checkDecoderVersion(decoder, logger)

	iqChan := make(chan []byte, 4)
	basebandChan := make(chan BasebandBlock, 2)
	hubChan := make(chan HubEvent, 64)
	ctlCmdChan := make(chan ControlCommand, 4)
	recvCmdChan := make(chan RecvCommand, 4)
	audioChan := make(chan VoiceFrame, 16)

	controller := NewControllerTask(ctl, ctlCmdChan, taskLogger(logger, "controller"), metrics)
	readerTask := NewReaderTask(reader, iqChan, taskLogger(logger, "reader"), metrics)
	demod := NewDemodTask(iqChan, basebandChan, hubChan, tee, taskLogger(logger, "demod"), metrics)

	const sampleRate = BasebandSampleRate
	policy := NewReceiverPolicy(
		secondsToSamples(cfg.tgselectTimeout, sampleRate),
		secondsToSamples(cfg.watchdogTimeout, sampleRate),
		secondsToSamples(cfg.pauseTimeout, sampleRate),
	)
	talkgroups := NewTalkgroupSelection(nil)
	receiver := NewReceiverTask(
		basebandChan, recvCmdChan, hubChan, ctlCmdChan, audioChan,
		decoder, policy, talkgroups, cfg.freq, cfg.hopEnabled,
		taskLogger(logger, "receiver"), metrics,
	)

	audio := NewAudioTask(sink, audioChan, taskLogger(logger, "audio"), metrics)

	hub := NewHubTask(cfg.bind, hubChan, recvCmdChan, cfg.ctlFreqRange, taskLogger(logger, "hub"), metrics)

	if cfg.verbosity > 0 {
		go reportHealth(taskLogger(logger, "health"))
	}

	go controller.Run()
	go readerTask.Run()
	go demod.Run()
	go receiver.Run()
	go audio.Run()

	if err := hub.Run(); err != nil {
		logger.Fatalf("hub server: %v", err)
	}
}

func taskLogger(base *log.Logger, task string) *log.Logger {
	return log.New(base.Writer(), fmt.Sprintf("[%s] ", task), base.Flags())
}

func secondsToSamples(seconds float64, sampleRate int) uint64 {
	if seconds <= 0 {
		return 1
	}
	return uint64(seconds * float64(sampleRate))
}

func parseDeviceIndex(device string) (uint, error) {
	var idx uint
	if _, err := fmt.Sscanf(device, "%d", &idx); err != nil {
		return 0, fmt.Errorf("invalid --device %q: %w", device, err)
	}
	return idx, nil
}

func configureGain(ctl SDRControl, gain string) error {
	if gain == "" || gain == "auto" {
		return ctl.EnableAGC()
	}
	var tenthsDB int
	if _, err := fmt.Sscanf(gain, "%d", &tenthsDB); err != nil {
		return fmt.Errorf("invalid --gain %q: %w", gain, err)
	}
	return ctl.SetGainTenthsDB(tenthsDB)
}

// checkDecoderVersion logs (never fails) if decoder reports an older
// version than this receiver was validated against (ground: teacher's
// version_checker.go).
func checkDecoderVersion(decoder Decoder, logger *log.Logger) {
	reported, err := version.NewVersion(decoder.Version())
	if err != nil {
		logger.Printf("decoder version %q unparseable, skipping compatibility check", decoder.Version())
		return
	}
	min, err := version.NewVersion(minDecoderVersion)
	if err != nil {
		return
	}
	if reported.LessThan(min) {
		logger.Printf("decoder version %s is older than the validated minimum %s", reported, min)
	}
}

// reportHealth logs this process's RSS and CPU percent every 30s, started
// only under -v (ground: teacher's instance_reporter.go/startStatsLogger).
func reportHealth(logger *log.Logger) {
	pid := int32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		logger.Printf("health reporter disabled: %v", err)
		return
	}

	for {
		time.Sleep(30 * time.Second)

		mem, err := proc.MemoryInfo()
		if err != nil {
			continue
		}
		cpuPct, err := proc.CPUPercent()
		if err != nil {
			continue
		}
		logger.Printf("rss=%dKiB cpu=%.1f%%", mem.RSS/1024, cpuPct)
	}
}

// countFlag implements flag.Value for a repeatable boolean flag
// (--verbose/-v), incrementing on each occurrence.
type countFlag int

func (c *countFlag) String() string { return fmt.Sprintf("%d", int(*c)) }
func (c *countFlag) Set(string) error {
	*c++
	return nil
}
func (c *countFlag) IsBoolFlag() bool { return true }
