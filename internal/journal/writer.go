package journal

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/events"
)

// Batch is a set of rows saved in one transaction.
type Batch struct {
	Events      []EventRow
	Transitions []TransitionRow
	Faults      []FaultRow
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Events) + len(b.Transitions) + len(b.Faults)
}

func (b *Batch) reset() {
	b.Events = b.Events[:0]
	b.Transitions = b.Transitions[:0]
	b.Faults = b.Faults[:0]
}

// entry is one queued row; exactly one field is set.
type entry struct {
	event      *EventRow
	transition *TransitionRow
	fault      *FaultRow
}

const (
	flushRows     = 64
	flushInterval = 250 * time.Millisecond
)

// Writer journals one session. It implements controller.Recorder: calls
// only enqueue, and a background goroutine writes batches to the database.
// When the queue is full, rows are dropped and counted rather than stalling
// the tick loop.
type Writer struct {
	db      *DB
	session string
	queue   chan entry
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64

	// Now stamps rows. Tests replace it.
	Now func() time.Time
}

var _ controller.Recorder = (*Writer)(nil)

// NewWriter starts a new session and its background writer.
func NewWriter(db *DB, note string, buffer int) (*Writer, error) {
	if buffer <= 0 {
		buffer = 1024
	}
	w := &Writer{
		db:      db,
		session: uuid.NewString(),
		queue:   make(chan entry, buffer),
		done:    make(chan struct{}),
		Now:     time.Now,
	}
	if err := db.BeginSession(w.session, w.Now().UnixMilli(), note); err != nil {
		return nil, err
	}
	slog.Info("journal session started", "session", w.session)
	go w.run()
	return w, nil
}

// Session returns the session id.
func (w *Writer) Session() string { return w.session }

// Dropped returns the number of rows lost to a full queue.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

func (w *Writer) RecordEvent(tick uint64, ev events.Event, outcome string) {
	w.enqueue(entry{event: &EventRow{
		Session:   w.session,
		Tick:      tick,
		AtMs:      w.Now().UnixMilli(),
		Origin:    ev.Origin.String(),
		Channel:   ev.Channel,
		Magnitude: ev.Magnitude,
		Duration:  ev.Duration,
		Outcome:   outcome,
	}})
}

func (w *Writer) RecordTransition(tick uint64, from, to controller.Mode) {
	w.enqueue(entry{transition: &TransitionRow{
		Session: w.session,
		Tick:    tick,
		AtMs:    w.Now().UnixMilli(),
		From:    from.String(),
		To:      to.String(),
	}})
}

func (w *Writer) RecordFault(tick uint64, err error) {
	w.enqueue(entry{fault: &FaultRow{
		Session: w.session,
		Tick:    tick,
		AtMs:    w.Now().UnixMilli(),
		Message: err.Error(),
	}})
}

func (w *Writer) enqueue(e entry) {
	select {
	case w.queue <- e:
	default:
		if w.dropped.Add(1) == 1 {
			slog.Warn("journal queue full, dropping rows", "session", w.session)
		}
	}
}

// Close flushes queued rows, stamps the session end and stops the writer.
// Recording after Close panics.
func (w *Writer) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	if n := w.dropped.Load(); n > 0 {
		slog.Warn("journal dropped rows", "session", w.session, "dropped", n)
	}
	return w.db.EndSession(w.session, w.Now().UnixMilli())
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var b Batch
	flush := func() {
		if err := w.db.SaveBatch(&b); err != nil {
			slog.Error("journal write failed", "rows", b.Len(), "error", err)
		}
		b.reset()
	}

	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				flush()
				return
			}
			switch {
			case e.event != nil:
				b.Events = append(b.Events, *e.event)
			case e.transition != nil:
				b.Transitions = append(b.Transitions, *e.transition)
			case e.fault != nil:
				b.Faults = append(b.Faults, *e.fault)
			}
			if b.Len() >= flushRows {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
