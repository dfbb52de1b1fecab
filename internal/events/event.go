// Package events reads earthquake trigger events from the two command
// channels. One event per line: C<channel>M<magnitude>D<duration>.
package events

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// GlobalTrigger is the channel id of a whole-rig earthquake trigger.
const GlobalTrigger = 99

// ErrMalformed is wrapped by every line that does not match the grammar.
var ErrMalformed = errors.New("events: malformed line")

// Origin identifies which command channel an event arrived on.
type Origin uint8

const (
	Vertical Origin = iota
	Horizontal
)

func (o Origin) String() string {
	switch o {
	case Vertical:
		return "vertical"
	case Horizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// Event is one parsed trigger line.
type Event struct {
	Origin    Origin `json:"origin"`
	Channel   int    `json:"channel"`
	Magnitude int    `json:"magnitude"` // tenths of a pseudo-magnitude unit
	Duration  int    `json:"duration"`  // milliseconds; parsed but not acted on
}

// IsGlobal reports whether the event targets the whole rig.
func (e Event) IsGlobal() bool {
	return e.Channel == GlobalTrigger
}

// String renders the canonical protocol line without the terminator.
func (e Event) String() string {
	return fmt.Sprintf("C%dM%dD%d", e.Channel, e.Magnitude, e.Duration)
}

// TriggerLine renders the zero-padded form the sensor triggers emit,
// including the terminator.
func (e Event) TriggerLine() string {
	return fmt.Sprintf("C%dM%03dD%08d\n", e.Channel, e.Magnitude, e.Duration)
}

// Parse decodes one line. A trailing line terminator is accepted.
func Parse(line string) (Event, error) {
	s := strings.TrimRight(line, "\r\n")
	var ev Event
	var err error
	rest := s

	if ev.Channel, rest, err = field(rest, 'C'); err != nil {
		return Event{}, fmt.Errorf("%w %q: %v", ErrMalformed, s, err)
	}
	if ev.Magnitude, rest, err = field(rest, 'M'); err != nil {
		return Event{}, fmt.Errorf("%w %q: %v", ErrMalformed, s, err)
	}
	if ev.Duration, rest, err = field(rest, 'D'); err != nil {
		return Event{}, fmt.Errorf("%w %q: %v", ErrMalformed, s, err)
	}
	if rest != "" {
		return Event{}, fmt.Errorf("%w %q: trailing %q", ErrMalformed, s, rest)
	}
	return ev, nil
}

// field consumes tag followed by an optionally signed decimal integer.
func field(s string, tag byte) (int, string, error) {
	if len(s) == 0 || s[0] != tag {
		return 0, s, fmt.Errorf("expected %c", tag)
	}
	s = s[1:]
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, s, fmt.Errorf("expected digits after %c", tag)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, s, err
	}
	return n, s[end:], nil
}
