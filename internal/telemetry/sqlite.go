// Package telemetry provides pluggable persistence for scheduler.StatusEvent
// streams. CSVSink continues the teacher's own CSV writer; SQLiteSink is the
// richer, queryable replacement described in the domain-stack expansion,
// adapted from the pack-mate CWL runner's SQLiteStore/Migrate pattern.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rtoskernel/internal/scheduler"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL,
	time        TEXT NOT NULL,
	tick        INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	handle      INTEGER NOT NULL,
	priority    INTEGER NOT NULL,
	delay_ticks INTEGER NOT NULL,
	error       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_handle ON events(handle);
`

// SQLiteSink persists every StatusEvent it receives (StatusIdle events
// included) from one scheduler run, identified by RunID, into a SQLite
// database.
type SQLiteSink struct {
	db     *sql.DB
	log    *slog.Logger
	RunID  string
}

// NewSQLiteSink opens (or creates) dbPath, runs its migration, and returns
// a sink tagging every event with a fresh run ID.
func NewSQLiteSink(dbPath string, log *slog.Logger) (*SQLiteSink, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	s := &SQLiteSink{
		db:    db,
		log:   log.With("component", "telemetry"),
		RunID: uuid.NewString(),
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) migrate(ctx context.Context) error {
	s.log.Debug("sql", "op", "migrate")
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Handle implements scheduler.Sink. Write errors are logged, not returned,
// since a telemetry sink must never abort the scheduling loop.
func (s *SQLiteSink) Handle(evt scheduler.StatusEvent) {
	errText := ""
	if evt.Err != nil {
		errText = evt.Err.Error()
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO events (id, run_id, time, tick, kind, handle, priority, delay_ticks, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), s.RunID, evt.Time.Format(time.RFC3339Nano), evt.Tick,
		evt.Kind.String(), uint64(evt.Handle), evt.Priority, evt.DelayTicks, errText,
	)
	if err != nil {
		s.log.Warn("failed to persist event", "err", err)
	}
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
