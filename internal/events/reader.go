package events

import (
	"errors"
	"io"
	"log/slog"
)

// ErrNoData is returned by a Source that has nothing to read right now.
var ErrNoData = errors.New("events: no data available")

// Source is a non-blocking byte stream. Read must never block: it returns
// ErrNoData (or io.EOF, or zero bytes) when nothing is available.
type Source interface {
	Read(p []byte) (int, error)
}

// maxReadsPerPoll bounds the work one Poll does on a chatty channel.
const maxReadsPerPoll = 8

// Reader turns one channel's byte stream into events.
type Reader struct {
	origin Origin
	src    Source
	lines  *LineBuffer
	chunk  []byte

	// Counters, read by telemetry.
	Accepted  uint64
	Malformed uint64
	ReadFails uint64
}

// NewReader creates a reader for src. maxLine bounds one protocol line.
func NewReader(origin Origin, src Source, maxLine int) *Reader {
	return &Reader{
		origin: origin,
		src:    src,
		lines:  NewLineBuffer(maxLine),
		chunk:  make([]byte, 512),
	}
}

// Origin returns the channel this reader serves.
func (r *Reader) Origin() Origin {
	return r.origin
}

// Partial returns how many bytes of an unterminated line are buffered.
func (r *Reader) Partial() int {
	return r.lines.Partial()
}

// Poll returns the next complete event, if any, without blocking.
// A malformed or oversized line yields ok=false and a non-nil error; the
// line is discarded and the next Poll continues after it. Read failures
// are reported the same way and never stop the reader.
func (r *Reader) Poll() (ev Event, ok bool, err error) {
	if r.lines.Pending() == 0 {
		if err := r.fill(); err != nil {
			r.ReadFails++
			return Event{}, false, err
		}
	}

	line, ok, err := r.lines.Next()
	if !ok {
		return Event{}, false, nil
	}
	if err != nil {
		r.Malformed++
		return Event{}, false, err
	}

	ev, err = Parse(line)
	if err != nil {
		r.Malformed++
		return Event{}, false, err
	}
	ev.Origin = r.origin
	r.Accepted++
	slog.Debug("event received", "origin", r.origin, "line", line)
	return ev, true, nil
}

// fill drains what the source has available right now, stopping early once
// a complete line is buffered.
func (r *Reader) fill() error {
	if r.src == nil {
		return nil
	}
	for i := 0; i < maxReadsPerPoll; i++ {
		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.lines.Feed(r.chunk[:n])
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrNoData), errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
		if n == 0 || r.lines.Pending() > 0 {
			return nil
		}
	}
	return nil
}
