// Command ambisynth renders ambient sessions. By default it serves the
// session API and the radio; -render and -batch run once and exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/satindergrewal/ambisynth/internal/analysis"
	"github.com/satindergrewal/ambisynth/internal/batch"
	"github.com/satindergrewal/ambisynth/internal/config"
	"github.com/satindergrewal/ambisynth/internal/encode"
	"github.com/satindergrewal/ambisynth/internal/jobs"
	"github.com/satindergrewal/ambisynth/internal/logger"
	"github.com/satindergrewal/ambisynth/internal/playback"
	"github.com/satindergrewal/ambisynth/internal/synth"
)

var version = "dev"

type renderOptions struct {
	mode    string
	minutes float64
	tod     string
	breaks  bool
	out     string
	play    bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: .env not loaded: %v", err)
	}

	var opts renderOptions
	render := flag.Bool("render", false, "render one session and exit")
	flag.StringVar(&opts.mode, "mode", "focus", "session mode: "+modeList())
	flag.Float64Var(&opts.minutes, "minutes", 25, "session length in minutes")
	flag.StringVar(&opts.tod, "tod", "", "time of day (morning, day, evening, night); empty detects from AMBI_TIMEZONE")
	flag.BoolVar(&opts.breaks, "breaks", false, "end with a silent break")
	flag.StringVar(&opts.out, "out", "", "output file, .wav or .mp3 (default: generated session name)")
	flag.BoolVar(&opts.play, "play", false, "play the session after rendering")
	plan := flag.String("batch", "", "render every session in a YAML plan and exit")
	flag.Parse()

	cfg := config.Load()

	flush, err := logger.Init(cfg.SentryDSN, cfg.Environment, version)
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	switch {
	case *render:
		err = renderOnce(ctx, cfg, opts)
	case *plan != "":
		err = runBatch(ctx, cfg, *plan)
	default:
		err = serve(ctx, cfg)
	}

	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ambisynth failed", err, nil)
		flush()
		os.Exit(1)
	}
	flush()
}

func modeList() string {
	names := make([]string, len(synth.Modes))
	for i, m := range synth.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func jobsConfig(cfg config.Config) jobs.Config {
	return jobs.Config{
		OutputDir:     cfg.OutputDir,
		Workers:       cfg.Workers,
		MaxMinutes:    cfg.MaxMinutes,
		TimeZone:      cfg.TimeZone,
		EncodeRetries: cfg.EncodeRetries,
		RetryDelay:    500 * time.Millisecond,
	}
}

// renderOnce synthesizes one session in process, writes it and optionally
// plays it. Unlike the API it accepts any positive length up to the
// configured maximum.
func renderOnce(ctx context.Context, cfg config.Config, opts renderOptions) error {
	req := synth.Request{
		Mode:            synth.Mode(opts.mode),
		DurationSeconds: opts.minutes * 60,
		TimeOfDay:       synth.TimeOfDay(opts.tod),
		IncludeBreaks:   opts.breaks,
	}
	if req.TimeOfDay == "" {
		tod, ok := synth.DetectTimeOfDay(time.Now(), cfg.TimeZone)
		if !ok {
			logger.Warn("unknown time zone, using UTC", logger.Fields{"zone": cfg.TimeZone})
		}
		req.TimeOfDay = tod
	}

	format := jobs.FormatWAV
	if strings.EqualFold(filepath.Ext(opts.out), ".mp3") {
		format = jobs.FormatMP3
	}
	out := opts.out
	if out == "" {
		out = jobs.FileName(req, format)
	}

	start := time.Now()
	track, err := synth.NewEngine(nil, float64(cfg.MaxMinutes*60)).Render(req)
	if err != nil {
		return err
	}
	report := analysis.Analyze(track.Samples, track.SampleRate)
	logger.Info("session rendered", logger.Fields{
		"mode":    string(req.Mode),
		"tod":     string(req.TimeOfDay),
		"scale":   track.Scale.Name(),
		"phases":  len(track.Phases),
		"elapsed": time.Since(start),
		"report":  report.String(),
	})

	if err := writeSession(ctx, cfg, track, out, format); err != nil {
		return err
	}
	fmt.Println(out)

	if opts.play {
		logger.Info("playing", logger.Fields{"duration": track.Duration()})
		return playback.Play(ctx, track.Samples, track.SampleRate)
	}
	return nil
}

func writeSession(ctx context.Context, cfg config.Config, track *synth.Track, out string, format jobs.Format) error {
	if format == jobs.FormatWAV {
		return encode.WriteWAVFile(out, track.Samples, track.SampleRate)
	}

	wavPath := strings.TrimSuffix(out, filepath.Ext(out)) + ".wav"
	if err := encode.WriteWAVFile(wavPath, track.Samples, track.SampleRate); err != nil {
		return err
	}
	defer os.Remove(wavPath)

	tc := encode.NewTranscoder(cfg.FFmpegPath, cfg.MP3Bitrate)
	return jobs.Retry(ctx, jobs.RetryConfig{
		MaxRetries:  cfg.EncodeRetries,
		BaseDelay:   500 * time.Millisecond,
		IsRetryable: jobs.IsRetryableEncode,
	}, func() error {
		return tc.ToMP3(ctx, wavPath, out)
	})
}

func runBatch(ctx context.Context, cfg config.Config, path string) error {
	plan, err := batch.Load(path)
	if err != nil {
		return err
	}

	mgr := jobs.NewManager(jobsConfig(cfg), encode.NewTranscoder(cfg.FFmpegPath, cfg.MP3Bitrate))
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := mgr.Run(runCtx); err != nil {
			logger.Error("job workers stopped", err, nil)
		}
	}()

	results, err := batch.Run(ctx, mgr, plan)
	failed := 0
	for i, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("%2d  %-9s %3dmin  FAILED  %v\n", i+1, res.Request.Mode, res.Request.Minutes, res.Err)
			continue
		}
		fmt.Printf("%2d  %-9s %3dmin  %s\n", i+1, res.Request.Mode, res.Request.Minutes, res.Path)
	}
	for _, res := range results {
		if res.JobID != "" {
			_ = mgr.Remove(res.JobID)
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sessions failed", failed, len(results))
	}
	return nil
}
