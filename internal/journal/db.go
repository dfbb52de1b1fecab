// Package journal keeps an SQLite audit trail of everything the rig did:
// one session per daemon start, and the events, mode transitions and
// actuator faults seen during it.
package journal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection for the journal.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a journal database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("journal opened", db.summary(path)...)
	return db, nil
}

// summary builds the attributes logged on open. Anything that cannot be
// read is left out.
func (db *DB) summary(path string) []any {
	attrs := []any{"path", path}
	if fi, err := os.Stat(path); err == nil {
		attrs = append(attrs, "size", humanize.Bytes(uint64(fi.Size())))
	}
	var n int64
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM events"); err != nil {
		slog.Debug("journal event count", "error", err)
		return attrs
	}
	return append(attrs, "events", humanize.Comma(n))
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_ms INTEGER NOT NULL,
		ended_ms INTEGER,
		note TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		tick INTEGER NOT NULL,
		at_ms INTEGER NOT NULL,
		origin TEXT NOT NULL,
		channel INTEGER NOT NULL,
		magnitude INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		outcome TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		tick INTEGER NOT NULL,
		at_ms INTEGER NOT NULL,
		from_mode TEXT NOT NULL,
		to_mode TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS faults (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		tick INTEGER NOT NULL,
		at_ms INTEGER NOT NULL,
		message TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session, tick);
	CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Session is one daemon run.
type Session struct {
	ID        string `db:"id" json:"id"`
	StartedMs int64  `db:"started_ms" json:"started_ms"`
	EndedMs   *int64 `db:"ended_ms" json:"ended_ms,omitempty"`
	Note      string `db:"note" json:"note"`
}

// EventRow is one journaled event and what the controller did with it.
type EventRow struct {
	Session   string `db:"session" json:"session"`
	Tick      uint64 `db:"tick" json:"tick"`
	AtMs      int64  `db:"at_ms" json:"at_ms"`
	Origin    string `db:"origin" json:"origin"`
	Channel   int    `db:"channel" json:"channel"`
	Magnitude int    `db:"magnitude" json:"magnitude"`
	Duration  int    `db:"duration" json:"duration"`
	Outcome   string `db:"outcome" json:"outcome"`
}

// TransitionRow is one mode change.
type TransitionRow struct {
	Session string `db:"session" json:"session"`
	Tick    uint64 `db:"tick" json:"tick"`
	AtMs    int64  `db:"at_ms" json:"at_ms"`
	From    string `db:"from_mode" json:"from"`
	To      string `db:"to_mode" json:"to"`
}

// FaultRow is one actuator fault.
type FaultRow struct {
	Session string `db:"session" json:"session"`
	Tick    uint64 `db:"tick" json:"tick"`
	AtMs    int64  `db:"at_ms" json:"at_ms"`
	Message string `db:"message" json:"message"`
}

// Counts totals the rows of one session.
type Counts struct {
	Events      int64 `json:"events"`
	Transitions int64 `json:"transitions"`
	Faults      int64 `json:"faults"`
}

// BeginSession records the start of a run.
func (db *DB) BeginSession(id string, startedMs int64, note string) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (id, started_ms, note) VALUES (?, ?, ?)",
		id, startedMs, note,
	)
	return err
}

// EndSession stamps the end of a run.
func (db *DB) EndSession(id string, endedMs int64) error {
	_, err := db.conn.Exec("UPDATE sessions SET ended_ms = ? WHERE id = ?", endedMs, id)
	return err
}

// SaveBatch appends a batch of rows in one transaction.
func (db *DB) SaveBatch(b *Batch) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range b.Events {
		_, err := tx.NamedExec(`INSERT INTO events
			(session, tick, at_ms, origin, channel, magnitude, duration, outcome)
			VALUES (:session, :tick, :at_ms, :origin, :channel, :magnitude, :duration, :outcome)`, e)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	for _, t := range b.Transitions {
		_, err := tx.NamedExec(`INSERT INTO transitions
			(session, tick, at_ms, from_mode, to_mode)
			VALUES (:session, :tick, :at_ms, :from_mode, :to_mode)`, t)
		if err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}
	}
	for _, f := range b.Faults {
		_, err := tx.NamedExec(`INSERT INTO faults
			(session, tick, at_ms, message)
			VALUES (:session, :tick, :at_ms, :message)`, f)
		if err != nil {
			return fmt.Errorf("insert fault: %w", err)
		}
	}

	return tx.Commit()
}

// Sessions returns the most recent runs, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	var out []Session
	err := db.conn.Select(&out,
		"SELECT id, started_ms, ended_ms, note FROM sessions ORDER BY started_ms DESC, rowid DESC LIMIT ?",
		limit,
	)
	return out, err
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRow, error) {
	var out []EventRow
	err := db.conn.Select(&out,
		`SELECT session, tick, at_ms, origin, channel, magnitude, duration, outcome
		 FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	return out, err
}

// RecentTransitions returns the most recent N mode changes, newest first.
func (db *DB) RecentTransitions(limit int) ([]TransitionRow, error) {
	var out []TransitionRow
	err := db.conn.Select(&out,
		"SELECT session, tick, at_ms, from_mode, to_mode FROM transitions ORDER BY id DESC LIMIT ?",
		limit,
	)
	return out, err
}

// RecentFaults returns the most recent N faults, newest first.
func (db *DB) RecentFaults(limit int) ([]FaultRow, error) {
	var out []FaultRow
	err := db.conn.Select(&out,
		"SELECT session, tick, at_ms, message FROM faults ORDER BY id DESC LIMIT ?",
		limit,
	)
	return out, err
}

// SessionCounts totals the rows journaled for one session.
func (db *DB) SessionCounts(session string) (Counts, error) {
	var c Counts
	if err := db.conn.Get(&c.Events, "SELECT COUNT(*) FROM events WHERE session = ?", session); err != nil {
		return c, err
	}
	if err := db.conn.Get(&c.Transitions, "SELECT COUNT(*) FROM transitions WHERE session = ?", session); err != nil {
		return c, err
	}
	if err := db.conn.Get(&c.Faults, "SELECT COUNT(*) FROM faults WHERE session = ?", session); err != nil {
		return c, err
	}
	return c, nil
}
