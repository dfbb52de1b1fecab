package events

import (
	"errors"
	"fmt"
)

// ErrLineTooLong reports a line that exceeded the buffer limit. The whole
// line, up to and including its terminator, is discarded.
var ErrLineTooLong = errors.New("events: line too long")

// DefaultMaxLine bounds a single protocol line. Trigger lines are ~16 bytes.
const DefaultMaxLine = 256

type lineResult struct {
	line string
	err  error
}

// LineBuffer splits a byte stream into lines. Partial lines are kept across
// calls to Feed; lines longer than max are rejected.
type LineBuffer struct {
	max      int
	partial  []byte
	dropping int // bytes discarded from an oversized line so far; 0 when not dropping
	ready    []lineResult
}

// NewLineBuffer creates a buffer accepting lines of at most max bytes,
// excluding the terminator.
func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineBuffer{max: max}
}

// Feed appends p to the stream.
func (b *LineBuffer) Feed(p []byte) {
	for _, c := range p {
		if c == '\n' {
			if b.dropping > 0 {
				b.ready = append(b.ready, lineResult{err: fmt.Errorf("%w: %d bytes (limit %d)", ErrLineTooLong, b.dropping, b.max)})
				b.dropping = 0
			} else {
				b.ready = append(b.ready, lineResult{line: string(b.partial)})
			}
			b.partial = b.partial[:0]
			continue
		}
		if b.dropping > 0 {
			b.dropping++
			continue
		}
		if len(b.partial) >= b.max {
			b.dropping = len(b.partial) + 1
			b.partial = b.partial[:0]
			continue
		}
		b.partial = append(b.partial, c)
	}
}

// Next returns the oldest complete line. ok is false when none is ready.
// Empty lines are skipped.
func (b *LineBuffer) Next() (line string, ok bool, err error) {
	for len(b.ready) > 0 {
		r := b.ready[0]
		b.ready = b.ready[1:]
		if r.err == nil && r.line == "" {
			continue
		}
		return r.line, true, r.err
	}
	return "", false, nil
}

// Pending returns the number of complete lines waiting.
func (b *LineBuffer) Pending() int {
	return len(b.ready)
}

// Partial returns the length of the incomplete trailing line.
func (b *LineBuffer) Partial() int {
	return len(b.partial)
}
