// Command quakefeed writes synthetic sensor events into the rig's channel
// pipes, for bench testing without the floor sensors.
//
// It uses the daemon's VPIPE_NAME/HPIPE_NAME settings. With -stdout, lines
// are printed instead.
package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pieqf/wavesim/internal/config"
	"github.com/pieqf/wavesim/internal/feed"
)

func main() {
	fc := feed.DefaultConfig()
	flag.Int64Var(&fc.Seed, "seed", time.Now().UnixNano(), "noise seed")
	flag.DurationVar(&fc.Period, "period", fc.Period, "time between events")
	flag.Float64Var(&fc.QuakeChance, "quakes", fc.QuakeChance, "probability that an event is a quake")
	flag.IntVar(&fc.MaxMagnitude, "max", fc.MaxMagnitude, "maximum directional magnitude")
	flag.IntVar(&fc.QuakeMag, "quake-mag", fc.QuakeMag, "quake magnitude")
	stdout := flag.Bool("stdout", false, "print lines instead of writing to the pipes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("bad configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.LogLevel))

	gen, err := feed.NewGenerator(fc)
	if err != nil {
		slog.Error("bad feed settings", "error", err)
		os.Exit(1)
	}

	var vert, horiz io.Writer = os.Stdout, os.Stdout
	if !*stdout {
		// Opening a pipe for writing waits for the daemon to open it.
		slog.Info("waiting for the rig to open its pipes", "vertical", cfg.VerticalPipe, "horizontal", cfg.HorizontalPipe)
		vf, err := os.OpenFile(cfg.VerticalPipe, os.O_WRONLY, 0)
		if err != nil {
			slog.Error("failed to open vertical pipe", "error", err)
			os.Exit(1)
		}
		defer vf.Close()
		hf, err := os.OpenFile(cfg.HorizontalPipe, os.O_WRONLY, 0)
		if err != nil {
			slog.Error("failed to open horizontal pipe", "error", err)
			os.Exit(1)
		}
		defer hf.Close()
		vert, horiz = vf, hf
	}

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(stop)
	}()

	slog.Info("feeding events", "period", fc.Period, "seed", fc.Seed)
	if err := gen.Run(stop, vert, horiz); err != nil {
		slog.Error("feed stopped", "error", err)
		os.Exit(1)
	}
}
