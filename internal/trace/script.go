// Package trace replays scripted event sequences through the controller
// offline and renders what the rig would have done.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pieqf/wavesim/internal/events"
)

// Step is one scripted action at a given tick.
//
// Script lines look like
//
//	0    wake
//	120  C0M50D100
//	400  h C99M20D0
//	9000 sleep
//
// An event line may be preceded by "v" or "h" to pick the channel it is
// written to. Without one, channel 99 goes to the horizontal channel and
// everything else to the vertical one. Blank lines and lines starting
// with '#' are ignored.
type Step struct {
	Tick   uint64
	Wake   *bool // set for wake/sleep steps
	Origin events.Origin
	Line   string // raw protocol line, without terminator
}

// ParseScript reads a script. Steps are returned ordered by tick; steps on
// the same tick keep their file order.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: want \"<tick> [v|h] <event>\" or \"<tick> wake|sleep\"", n)
		}
		tick, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: tick: %w", n, err)
		}
		step := Step{Tick: tick}

		switch {
		case len(fields) == 2 && (fields[1] == "wake" || fields[1] == "sleep"):
			awake := fields[1] == "wake"
			step.Wake = &awake
		default:
			line := fields[len(fields)-1]
			ev, err := events.Parse(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			step.Line = line
			step.Origin = events.Vertical
			if ev.IsGlobal() {
				step.Origin = events.Horizontal
			}
			if len(fields) == 3 {
				switch fields[1] {
				case "v":
					step.Origin = events.Vertical
				case "h":
					step.Origin = events.Horizontal
				default:
					return nil, fmt.Errorf("line %d: unknown channel %q", n, fields[1])
				}
			}
		}
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Tick < steps[j].Tick })
	return steps, nil
}
