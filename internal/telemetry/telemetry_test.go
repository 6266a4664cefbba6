package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rtoskernel/internal/scheduler"
)

func TestCSVSinkWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	sink.Handle(scheduler.StatusEvent{Time: time.Now(), Tick: 1, Kind: scheduler.StatusDispatch, Handle: 1, Priority: 5})
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty CSV output")
	}
}

func TestSQLiteSinkPersistsAndIsQueryable(t *testing.T) {
	sink, err := NewSQLiteSink(":memory:", nil)
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })

	sink.Handle(scheduler.StatusEvent{Time: time.Now(), Tick: 1, Kind: scheduler.StatusBlock, Handle: 7, DelayTicks: 3})
	sink.Handle(scheduler.StatusEvent{Time: time.Now(), Tick: 2, Kind: scheduler.StatusFinish, Handle: 7})

	var count int
	row := sink.dbForTest().QueryRow(`SELECT COUNT(*) FROM events WHERE run_id = ?`, sink.RunID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 persisted events, got %d", count)
	}
}

// dbForTest exposes the underlying *sql.DB for assertions without widening
// the package's public surface.
func (s *SQLiteSink) dbForTest() *sql.DB { return s.db }
