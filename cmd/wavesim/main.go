// Command wavesim runs the shake-table rig: it listens for floor sensor
// events on two named pipes, simulates the wave they start, and drives the
// cylinders and the horizontal ram.
//
// SIGUSR1 wakes the rig, SIGUSR2 puts it to sleep, SIGINT/SIGTERM stop it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pieqf/wavesim/internal/api"
	"github.com/pieqf/wavesim/internal/config"
	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/engine"
	"github.com/pieqf/wavesim/internal/events"
	"github.com/pieqf/wavesim/internal/journal"
	"github.com/pieqf/wavesim/internal/rig"
)

func main() {
	slog.SetDefault(config.NewLogger(os.Stdout, slog.LevelInfo))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("bad configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(os.Stdout, cfg.LogLevel))

	slog.Info("wavesim starting",
		"positions", cfg.Controller.Sim.Length,
		"tick", cfg.Tick,
		"rig", cfg.Rig,
		"channels", config.FormatChannelMap(cfg.Controller.ChannelMap),
	)

	// ── Rig ───────────────────────────────────────────────────────────
	wiring := rig.WiringFor(cfg.Controller.Sim.Length)
	var port rig.Port
	switch cfg.Rig {
	case config.RigDevice:
		if wiring.Registers() > len(rig.DeviceNames) {
			slog.Error("array too long for the DIO board", "positions", cfg.Controller.Sim.Length, "registers", wiring.Registers())
			os.Exit(1)
		}
		dp, err := rig.OpenDevicePort(cfg.DeviceDir)
		if err != nil {
			slog.Error("failed to open DIO board", "dir", cfg.DeviceDir, "error", err)
			os.Exit(1)
		}
		defer dp.Close()
		port = dp
	default:
		port = rig.NewMemoryPort(wiring.Registers(), 0)
		slog.Warn("dry run: actuator commands stay in memory")
	}
	bank := rig.NewBank(port, wiring)

	// ── Event channels ────────────────────────────────────────────────
	vfifo, err := events.OpenFIFO(cfg.VerticalPipe)
	if err != nil {
		slog.Error("failed to open vertical channel", "error", err)
		os.Exit(1)
	}
	defer vfifo.Close()
	hfifo, err := events.OpenFIFO(cfg.HorizontalPipe)
	if err != nil {
		slog.Error("failed to open horizontal channel", "error", err)
		os.Exit(1)
	}
	defer hfifo.Close()
	slog.Info("listening", "vertical", vfifo.Path(), "horizontal", hfifo.Path())

	// ── Controller ────────────────────────────────────────────────────
	wake := &controller.WakeSignal{}
	ctl, err := controller.New(cfg.Controller, bank,
		events.NewReader(events.Vertical, vfifo, cfg.LineMax),
		events.NewReader(events.Horizontal, hfifo, cfg.LineMax),
		wake)
	if err != nil {
		slog.Error("failed to build controller", "error", err)
		os.Exit(1)
	}

	// ── Journal ───────────────────────────────────────────────────────
	var db *journal.DB
	var jw *journal.Writer
	if cfg.Journal != "" {
		db, err = journal.Open(cfg.Journal)
		if err != nil {
			slog.Error("failed to open journal", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		jw, err = journal.NewWriter(db, fmt.Sprintf("rig=%s positions=%d", cfg.Rig, cfg.Controller.Sim.Length), 4096)
		if err != nil {
			slog.Error("failed to start journal session", "error", err)
			os.Exit(1)
		}
		ctl.Recorder = jw
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if cfg.APIPort > 0 {
		if cfg.AdminKey == "" {
			slog.Warn("WAVESIM_ADMIN_KEY not set, POST /api/v1/wake disabled")
		}
		hub := api.NewHub()
		ctl.OnSnapshot = hub.Publish
		apiServer = &api.Server{
			Hub:      hub,
			Wake:     wake,
			Journal:  db,
			Port:     cfg.APIPort,
			AdminKey: cfg.AdminKey,
		}
		if jw != nil {
			apiServer.Writer = jw
		}
		apiServer.Start()
	}

	if err := ctl.Init(); err != nil {
		slog.Error("failed to drive the rig to a safe state", "error", err)
	}

	// ── Loop ──────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.Interval = cfg.Tick
	eng.ReportEvery = uint64(time.Minute / cfg.Tick)
	eng.OnTick = func(uint64) {
		// Faults are logged by the controller, which is already asleep.
		_ = ctl.Tick()
	}
	eng.OnReport = func(tick uint64, s engine.Stats) {
		slog.Info("rig report",
			"mode", ctl.Mode(),
			"ticks", humanize.Comma(int64(tick)),
			"rig_time", engine.RigTime(tick, eng.Interval),
			"overruns", s.Overruns,
			"max_work", s.MaxWork,
			"energy", fmt.Sprintf("%.3f", ctl.Simulator().HorizontalEnergy()),
		)
	}

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				slog.Info("wake signal set", "signal", sig)
				wake.Set()
			case syscall.SIGUSR2:
				slog.Info("wake signal cleared", "signal", sig)
				wake.Clear()
			default:
				slog.Info("received signal, shutting down", "signal", sig)
				eng.Stop()
				return
			}
		}
	}()

	eng.Run()

	// ── Shutdown ──────────────────────────────────────────────────────
	if err := ctl.Halt(); err != nil {
		slog.Error("halt failed", "error", err)
	}
	if err := bank.AllStop(); err != nil {
		slog.Error("all stop failed", "error", err)
	}
	if apiServer != nil {
		apiServer.Close()
	}
	if jw != nil {
		if err := jw.Close(); err != nil {
			slog.Error("journal close failed", "error", err)
		}
	}
	slog.Info("wavesim stopped", "ticks", humanize.Comma(int64(eng.Tick)))
}
