package telemetry

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"rtoskernel/internal/scheduler"
)

// CSVSink writes one row per StatusEvent it receives (StatusIdle events
// included), adapted from the teacher's Scheduler.EnableCSVLogging.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates (or truncates) path and writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "tick", "event", "handle", "priority", "delay_ticks", "error"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVSink{file: f, writer: w}, nil
}

// Handle implements scheduler.Sink.
func (s *CSVSink) Handle(evt scheduler.StatusEvent) {
	errText := ""
	if evt.Err != nil {
		errText = evt.Err.Error()
	}
	s.writer.Write([]string{
		evt.Time.Format(time.RFC3339Nano),
		strconv.FormatInt(evt.Tick, 10),
		evt.Kind.String(),
		strconv.FormatUint(uint64(evt.Handle), 10),
		strconv.Itoa(evt.Priority),
		strconv.FormatInt(evt.DelayTicks, 10),
		errText,
	})
	s.writer.Flush()
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.writer.Flush()
	return s.file.Close()
}
