package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pieqf/wavesim/internal/controller"
	"github.com/pieqf/wavesim/internal/events"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriterRoundTrip(t *testing.T) {
	db := openTemp(t)

	w, err := NewWriter(db, "bench run", 16)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	clock := time.UnixMilli(1_700_000_000_000)
	w.Now = func() time.Time { return clock }

	w.RecordTransition(1, controller.Sleep, controller.Breathe)
	w.RecordEvent(7, events.Event{Origin: events.Vertical, Channel: 0, Magnitude: 50, Duration: 100}, controller.OutcomeRipple)
	w.RecordEvent(9, events.Event{Origin: events.Horizontal, Channel: 99, Magnitude: 20}, controller.OutcomeActive)
	w.RecordFault(12, errors.New("valve driver offline"))

	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	evs, err := db.RecentEvents(10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Channel != 99 || evs[0].Outcome != "active" || evs[0].Origin != "horizontal" {
		t.Fatalf("unexpected newest event %+v", evs[0])
	}
	if evs[1].Tick != 7 || evs[1].Magnitude != 50 || evs[1].Duration != 100 || evs[1].AtMs != clock.UnixMilli() {
		t.Fatalf("unexpected oldest event %+v", evs[1])
	}

	trs, err := db.RecentTransitions(10)
	if err != nil {
		t.Fatalf("recent transitions: %v", err)
	}
	if len(trs) != 1 || trs[0].From != "sleep" || trs[0].To != "breathe" {
		t.Fatalf("unexpected transitions %+v", trs)
	}

	faults, err := db.RecentFaults(10)
	if err != nil {
		t.Fatalf("recent faults: %v", err)
	}
	if len(faults) != 1 || faults[0].Message != "valve driver offline" {
		t.Fatalf("unexpected faults %+v", faults)
	}

	c, err := db.SessionCounts(w.Session())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Events != 2 || c.Transitions != 1 || c.Faults != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}

	sessions, err := db.Sessions(5)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != w.Session() || sessions[0].Note != "bench run" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
	if sessions[0].EndedMs == nil || *sessions[0].EndedMs != clock.UnixMilli() {
		t.Fatalf("expected session end stamped")
	}
}

func TestLargeBatchesFlush(t *testing.T) {
	db := openTemp(t)
	w, err := NewWriter(db, "", 4096)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	for i := 0; i < 500; i++ {
		w.RecordEvent(uint64(i), events.Event{Channel: i % 4, Magnitude: i}, controller.OutcomeGated)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	c, err := db.SessionCounts(w.Session())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if c.Events+int64(w.Dropped()) != 500 {
		t.Fatalf("expected 500 events written or dropped, got %d written, %d dropped", c.Events, w.Dropped())
	}
}

func TestSessionsAreSeparate(t *testing.T) {
	db := openTemp(t)
	a, err := NewWriter(db, "first", 8)
	if err != nil {
		t.Fatalf("writer a: %v", err)
	}
	a.RecordTransition(1, controller.Sleep, controller.Breathe)
	a.Close()

	b, err := NewWriter(db, "second", 8)
	if err != nil {
		t.Fatalf("writer b: %v", err)
	}
	b.Close()

	if a.Session() == b.Session() {
		t.Fatalf("expected distinct session ids")
	}
	cb, _ := db.SessionCounts(b.Session())
	if cb.Transitions != 0 {
		t.Fatalf("second session should be empty, got %+v", cb)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w, _ := NewWriter(db, "", 8)
	w.RecordEvent(3, events.Event{Channel: 1, Magnitude: 12}, controller.OutcomeRipple)
	w.Close()
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	evs, err := db.RecentEvents(1)
	if err != nil || len(evs) != 1 || evs[0].Magnitude != 12 {
		t.Fatalf("expected event to survive reopen, got %+v (%v)", evs, err)
	}
}

func TestSummarySkipsUnreadableCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	attrs := db.summary(path)
	if len(attrs) != 6 || attrs[4] != "events" || attrs[5] != "0" {
		t.Fatalf("expected path, size and events, got %v", attrs)
	}

	if _, err := db.conn.Exec("DROP TABLE events"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	attrs = db.summary(path)
	for i := 0; i < len(attrs); i += 2 {
		if attrs[i] == "events" {
			t.Fatalf("expected events left out when the count fails, got %v", attrs)
		}
	}
	if attrs[0] != "path" || attrs[1] != path {
		t.Fatalf("expected the path kept, got %v", attrs)
	}
}
