// Command wavetrace replays an event script through the rig controller
// offline and renders the result as PNG plots.
//
//	wavetrace -script quake.txt -ticks 4000 -out traces/quake
//
// Simulator and mapper tuning is read from the same environment variables
// as the daemon.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/pieqf/wavesim/internal/config"
	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/trace"
)

func main() {
	scriptPath := flag.String("script", "", "event script (\"<tick> [v|h] <line>\" or \"<tick> wake|sleep\")")
	ticks := flag.Uint64("ticks", 4000, "ticks to simulate")
	outDir := flag.String("out", "trace", "output directory for plots")
	awake := flag.Bool("awake", true, "start with the wake signal set")
	width := flag.Float64("width", 10, "plot width in inches")
	height := flag.Float64("height", 6, "plot height in inches")
	flag.Parse()

	slog.SetDefault(config.NewLogger(os.Stderr, slog.LevelWarn))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("bad configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, max(cfg.LogLevel, slog.LevelWarn)))

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "wavetrace: -script is required")
		flag.Usage()
		os.Exit(2)
	}
	f, err := os.Open(*scriptPath)
	if err != nil {
		slog.Error("failed to open script", "error", err)
		os.Exit(1)
	}
	steps, err := trace.ParseScript(f)
	f.Close()
	if err != nil {
		slog.Error("failed to parse script", "path", *scriptPath, "error", err)
		os.Exit(1)
	}

	tr, err := trace.Replay(trace.Options{
		Config:   cfg.Controller,
		Interval: cfg.Tick,
		Ticks:    *ticks,
		Awake:    *awake,
		LineMax:  cfg.LineMax,
	}, steps)
	if err != nil {
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}

	files, err := tr.Render(*outDir, *width, *height)
	if err != nil {
		slog.Error("render failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("replayed %s ticks (%d steps)\n", humanize.Comma(int64(*ticks)), len(steps))
	modes := tr.ModeTicks()
	for _, m := range []controller.Mode{controller.Sleep, controller.Breathe, controller.Active, controller.Ripple} {
		fmt.Printf("  %-8s %s ticks\n", m, humanize.Comma(int64(modes[m])))
	}
	for _, t := range tr.Transitions {
		fmt.Printf("  tick %-8d %s -> %s\n", t.Tick, t.From, t.To)
	}
	if tr.Faults > 0 {
		fmt.Printf("  %d actuator faults\n", tr.Faults)
	}
	for _, f := range files {
		fmt.Println("wrote", f)
	}
}
