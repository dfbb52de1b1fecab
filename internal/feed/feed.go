// Package feed generates synthetic sensor events for bench testing the rig
// without the floor sensors attached.
//
// Directional magnitudes follow a smooth noise envelope per channel, so
// busy and quiet stretches alternate the way foot traffic does. An
// occasional channel-99 quake is mixed in.
package feed

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pieqf/wavesim/internal/events"
)

// Config holds generator parameters.
type Config struct {
	Seed         int64
	Channels     []int   // directional channels to emit on
	MaxMagnitude int     // directional magnitude ceiling
	Frequency    float64 // noise frequency per emitted event
	QuakeChance  float64 // probability that an emission is a quake
	QuakeMag     int     // quake magnitude (horizontal tickle)
	Period       time.Duration
}

// DefaultConfig matches the default channel map and gate.
func DefaultConfig() Config {
	return Config{
		Seed:         1,
		Channels:     []int{0, 1, 2, 3},
		MaxMagnitude: 80,
		Frequency:    0.07,
		QuakeChance:  0.01,
		QuakeMag:     20,
		Period:       2 * time.Second,
	}
}

// Generator produces events deterministically from its seed.
type Generator struct {
	cfg   Config
	noise opensimplex.Noise
	rng   *rand.Rand
	step  int
}

// NewGenerator creates a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("feed needs at least one channel")
	}
	for _, ch := range cfg.Channels {
		if ch == events.GlobalTrigger {
			return nil, fmt.Errorf("channel %d is reserved for quakes", ch)
		}
	}
	if cfg.MaxMagnitude <= 0 {
		return nil, fmt.Errorf("max magnitude must be positive")
	}
	return &Generator{
		cfg:   cfg,
		noise: opensimplex.NewNormalized(cfg.Seed),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Next returns the next event. Quakes carry the Horizontal origin,
// directional events the Vertical one.
func (g *Generator) Next() events.Event {
	g.step++
	if g.rng.Float64() < g.cfg.QuakeChance {
		return events.Event{
			Origin:    events.Horizontal,
			Channel:   events.GlobalTrigger,
			Magnitude: g.cfg.QuakeMag,
		}
	}

	ch := g.cfg.Channels[g.rng.Intn(len(g.cfg.Channels))]
	env := octaveNoise(g.noise, float64(g.step)*g.cfg.Frequency, float64(ch)*7.31, 3, 1, 0.5)
	mag := int(env * float64(g.cfg.MaxMagnitude))
	if mag < 0 {
		mag = 0
	}
	return events.Event{
		Origin:    events.Vertical,
		Channel:   ch,
		Magnitude: mag,
		Duration:  50 + g.rng.Intn(450),
	}
}

// Emit writes the next event to the writer for its origin, in the
// zero-padded trigger format.
func (g *Generator) Emit(vert, horiz io.Writer) (events.Event, error) {
	ev := g.Next()
	w := vert
	if ev.Origin == events.Horizontal {
		w = horiz
	}
	if _, err := io.WriteString(w, ev.TriggerLine()); err != nil {
		return ev, fmt.Errorf("write %s: %w", ev.Origin, err)
	}
	return ev, nil
}

// Run emits one event per period until stop is closed or a write fails.
func (g *Generator) Run(stop <-chan struct{}, vert, horiz io.Writer) error {
	t := time.NewTicker(g.cfg.Period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-t.C:
			ev, err := g.Emit(vert, horiz)
			if err != nil {
				return err
			}
			slog.Debug("emitted", "event", ev.String(), "origin", ev.Origin)
		}
	}
}

// octaveNoise layers octaves of 2D noise; the result stays in [0,1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
