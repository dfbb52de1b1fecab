package config

import (
	"log/slog"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := cfg.Controller
	if c.Sim.Length != 21 || c.Sim.C2 != 0.1 || c.Sim.HDamping != 0.02 || c.Sim.Small != 3.0 {
		t.Fatalf("unexpected simulator defaults %+v", c.Sim)
	}
	if c.Mapper.Bias != -0.0025 || c.Mapper.Threshold != 0.01 || c.Mapper.HThreshold != 1.0 {
		t.Fatalf("unexpected mapper defaults %+v", c.Mapper)
	}
	if c.BreatheTicks != 70 || c.PauseTicks != 900 || c.MagnitudeGate != 10 {
		t.Fatalf("unexpected controller defaults %+v", c)
	}
	if cfg.Tick != 5*time.Millisecond || cfg.Rig != RigDry || cfg.APIPort != 0 {
		t.Fatalf("unexpected daemon defaults %+v", cfg)
	}
	if cfg.VerticalPipe != "/tmp/pieqf-vert.fifo" || cfg.HorizontalPipe != "/tmp/pieqf-hori.fifo" {
		t.Fatalf("unexpected pipe names %q %q", cfg.VerticalPipe, cfg.HorizontalPipe)
	}
	if got := FormatChannelMap(c.ChannelMap); got != "0:19,1:1,2:10,3:10" {
		t.Fatalf("unexpected channel map %s", got)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SIM_C2":              "0.2",
		"SIM_HSMALL":          "4",
		"MAP_BIAS":            "0",
		"BREATHE_TIME":        "35",
		"PAUSE_TIME":          "450",
		"VPIPE_NAME":          "/run/v.fifo",
		"WAVESIM_TICK":        "10ms",
		"WAVESIM_SETTLE":      "0s",
		"WAVESIM_RIG":         "device",
		"WAVESIM_API_PORT":    "8080",
		"WAVESIM_LOG_LEVEL":   "debug",
		"WAVESIM_CHANNEL_MAP": "0:18, 1:2",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c := cfg.Controller
	if c.Sim.C2 != 0.2 || c.Sim.Small != 4 || c.Mapper.Bias != 0 {
		t.Fatalf("numeric overrides not applied: %+v %+v", c.Sim, c.Mapper)
	}
	if c.BreatheTicks != 35 || c.PauseTicks != 450 || c.SettleDelay != 0 {
		t.Fatalf("timing overrides not applied: %+v", c)
	}
	if cfg.VerticalPipe != "/run/v.fifo" || cfg.Tick != 10*time.Millisecond {
		t.Fatalf("daemon overrides not applied: %+v", cfg)
	}
	if cfg.Rig != RigDevice || cfg.APIPort != 8080 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected rig/api/log settings %+v", cfg)
	}
	if len(c.ChannelMap) != 2 || c.ChannelMap[0] != 18 || c.ChannelMap[1] != 2 {
		t.Fatalf("unexpected channel map %v", c.ChannelMap)
	}
}

func TestInvalidValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadFrom(envMap(map[string]string{
		"SIM_DT":              "fast",
		"BREATHE_TIME":        "1.5",
		"WAVESIM_TICK":        "5",
		"WAVESIM_RIG":         "lab",
		"WAVESIM_LOG_LEVEL":   "chatty",
		"WAVESIM_CHANNEL_MAP": "0=19",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Controller.Sim.Dt != 0.1 || cfg.Controller.BreatheTicks != 70 {
		t.Fatalf("invalid numbers replaced defaults: %+v", cfg.Controller)
	}
	if cfg.Tick != 5*time.Millisecond || cfg.Rig != RigDry || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("invalid settings replaced defaults: %+v", cfg)
	}
	if cfg.Controller.ChannelMap[0] != 19 {
		t.Fatalf("invalid channel map replaced default")
	}

	for _, env := range []map[string]string{
		{"SIM_HSMALL": "NaN"},
		{"SIM_DT": "NaN"},
		{"SIM_DT": "Inf"},
		{"SIM_HVSMALL": "-Inf"},
		{"MAP_THRESH": "+Inf"},
	} {
		cfg, err := LoadFrom(envMap(env))
		if err != nil {
			t.Fatalf("%v: load: %v", env, err)
		}
		def := Defaults()
		if cfg.Controller.Sim != def.Controller.Sim || cfg.Controller.Mapper != def.Controller.Mapper {
			t.Fatalf("%v: non-finite value replaced defaults: %+v", env, cfg.Controller)
		}
	}
}

func TestInconsistentConfigRejected(t *testing.T) {
	_, err := LoadFrom(envMap(map[string]string{"SIM_LEN": "12"}))
	if err == nil {
		t.Fatalf("expected error: channel 0 maps to 19 on a 12-position array")
	}
	_, err = LoadFrom(envMap(map[string]string{
		"SIM_LEN":             "12",
		"WAVESIM_CHANNEL_MAP": "0:11,1:0",
	}))
	if err != nil {
		t.Fatalf("expected consistent config to load: %v", err)
	}
}

func TestParseChannelMap(t *testing.T) {
	tests := []struct {
		in      string
		want    map[int]int
		wantErr bool
	}{
		{"0:19,1:1,2:10,3:10", map[int]int{0: 19, 1: 1, 2: 10, 3: 10}, false},
		{" 4 : 7 ,", map[int]int{4: 7}, false},
		{"", nil, true},
		{"0:1,0:2", nil, true},
		{"a:1", nil, true},
		{"0:b", nil, true},
		{"0", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseChannelMap(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseChannelMap(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseChannelMap(%q): %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseChannelMap(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("ParseChannelMap(%q)[%d] = %d, want %d", tt.in, k, got[k], v)
			}
		}
	}
}

func TestParseNumber(t *testing.T) {
	if v, err := parseNumber[uint16]("65535"); err != nil || v != 65535 {
		t.Fatalf("uint16: %v %v", v, err)
	}
	if _, err := parseNumber[uint]("-1"); err == nil {
		t.Fatalf("expected error for negative unsigned")
	}
	if v, err := parseNumber[float64](" -0.0025 "); err != nil || v != -0.0025 {
		t.Fatalf("float64: %v %v", v, err)
	}
	if _, err := parseNumber[int]("3.5"); err == nil {
		t.Fatalf("expected error for fractional int")
	}
	for _, s := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity"} {
		if _, err := parseNumber[float64](s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
