// Package config loads the rig configuration from the environment.
//
// Every variable is optional. A value that cannot be parsed is reported and
// the default is kept, so a typo never stops the rig from starting.
package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/exp/constraints"

	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/engine"
	"github.com/pieqf/wavesim/internal/events"
)

// Rig backends.
const (
	RigDry    = "dry"
	RigDevice = "device"
)

// Config is the complete daemon configuration.
type Config struct {
	Controller controller.Config

	Tick    time.Duration
	LineMax int

	VerticalPipe   string
	HorizontalPipe string

	Rig       string // RigDry or RigDevice
	DeviceDir string

	Journal  string // sqlite path, empty disables
	APIPort  int    // 0 disables
	AdminKey string

	LogLevel slog.Level
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		Controller:     controller.DefaultConfig(),
		Tick:           engine.DefaultInterval,
		LineMax:        events.DefaultMaxLine,
		VerticalPipe:   "/tmp/pieqf-vert.fifo",
		HorizontalPipe: "/tmp/pieqf-hori.fifo",
		Rig:            RigDry,
		DeviceDir:      "/dev/dda0x-16",
		LogLevel:       slog.LevelInfo,
	}
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads variables through getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	e := env{get: getenv}

	s := &cfg.Controller.Sim
	s.C2 = envNumber(e, "SIM_C2", s.C2)
	s.Damping = envNumber(e, "SIM_DAMPING", s.Damping)
	s.Dt = envNumber(e, "SIM_DT", s.Dt)
	s.Stiffness = envNumber(e, "SIM_HF2", s.Stiffness)
	s.HDamping = envNumber(e, "SIM_HD", s.HDamping)
	s.Small = envNumber(e, "SIM_HSMALL", s.Small)
	s.VerySmall = envNumber(e, "SIM_HVSMALL", s.VerySmall)
	s.Length = envNumber(e, "SIM_LEN", s.Length)

	m := &cfg.Controller.Mapper
	m.Bias = envNumber(e, "MAP_BIAS", m.Bias)
	m.Threshold = envNumber(e, "MAP_THRESH", m.Threshold)
	m.HThreshold = envNumber(e, "MAP_HTHRESH", m.HThreshold)

	c := &cfg.Controller
	c.BreatheTicks = envNumber(e, "BREATHE_TIME", c.BreatheTicks)
	c.PauseTicks = envNumber(e, "PAUSE_TIME", c.PauseTicks)
	c.MagnitudeGate = envNumber(e, "WAVESIM_MAG_GATE", c.MagnitudeGate)
	c.SettleDelay = e.duration("WAVESIM_SETTLE", c.SettleDelay)
	if v := e.get("WAVESIM_CHANNEL_MAP"); v != "" {
		if cm, err := ParseChannelMap(v); err != nil {
			e.invalid("WAVESIM_CHANNEL_MAP", v, err)
		} else {
			c.ChannelMap = cm
		}
	}

	cfg.Tick = e.duration("WAVESIM_TICK", cfg.Tick)
	cfg.LineMax = envNumber(e, "WAVESIM_LINE_MAX", cfg.LineMax)
	cfg.VerticalPipe = e.str("VPIPE_NAME", cfg.VerticalPipe)
	cfg.HorizontalPipe = e.str("HPIPE_NAME", cfg.HorizontalPipe)

	switch v := e.str("WAVESIM_RIG", cfg.Rig); v {
	case RigDry, RigDevice:
		cfg.Rig = v
	default:
		e.invalid("WAVESIM_RIG", v, fmt.Errorf("want %q or %q", RigDry, RigDevice))
	}
	cfg.DeviceDir = e.str("WAVESIM_DEVICE_DIR", cfg.DeviceDir)
	cfg.Journal = e.str("WAVESIM_JOURNAL", cfg.Journal)
	cfg.APIPort = envNumber(e, "WAVESIM_API_PORT", cfg.APIPort)
	cfg.AdminKey = e.get("WAVESIM_ADMIN_KEY")

	if v := e.get("WAVESIM_LOG_LEVEL"); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			e.invalid("WAVESIM_LOG_LEVEL", v, err)
		} else {
			cfg.LogLevel = lvl
		}
	}

	if cfg.Tick <= 0 {
		return cfg, fmt.Errorf("tick interval must be positive, got %s", cfg.Tick)
	}
	if err := cfg.Controller.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ParseChannelMap parses "channel:position" pairs separated by commas.
func ParseChannelMap(s string) (map[int]int, error) {
	out := make(map[int]int)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ch, pos, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("channel map entry %q: missing ':'", pair)
		}
		c, err := strconv.Atoi(strings.TrimSpace(ch))
		if err != nil {
			return nil, fmt.Errorf("channel map entry %q: %w", pair, err)
		}
		p, err := strconv.Atoi(strings.TrimSpace(pos))
		if err != nil {
			return nil, fmt.Errorf("channel map entry %q: %w", pair, err)
		}
		if _, dup := out[c]; dup {
			return nil, fmt.Errorf("channel %d mapped twice", c)
		}
		out[c] = p
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty channel map")
	}
	return out, nil
}

// FormatChannelMap is the inverse of ParseChannelMap, ordered by channel.
func FormatChannelMap(m map[int]int) string {
	chans := make([]int, 0, len(m))
	for ch := range m {
		chans = append(chans, ch)
	}
	sort.Ints(chans)
	parts := make([]string, len(chans))
	for i, ch := range chans {
		parts[i] = fmt.Sprintf("%d:%d", ch, m[ch])
	}
	return strings.Join(parts, ",")
}

// NewLogger builds the process logger: text on a terminal, JSON otherwise.
func NewLogger(out *os.File, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

type env struct {
	get func(string) string
}

func (e env) invalid(key, value string, err error) {
	slog.Warn("ignoring invalid setting", "key", key, "value", value, "error", err)
}

func (e env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e env) duration(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return d
}

type number interface {
	constraints.Integer | constraints.Float
}

func envNumber[T number](e env, key string, def T) T {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := parseNumber[T](v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return n
}

func parseNumber[T number](s string) (T, error) {
	s = strings.TrimSpace(s)
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return zero, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return zero, fmt.Errorf("%q is not a finite number", s)
		}
		return T(f), nil
	case uint, uint8, uint16, uint32, uint64, uintptr:
		u, err := strconv.ParseUint(s, 10, 64)
		return T(u), err
	default:
		i, err := strconv.ParseInt(s, 10, 64)
		return T(i), err
	}
}
