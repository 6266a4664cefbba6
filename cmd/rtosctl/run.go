package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"rtoskernel/internal/kernel"
	"rtoskernel/internal/logging"
	"rtoskernel/internal/rtosconfig"
	"rtoskernel/internal/scheduler"
	"rtoskernel/internal/tcb"
	"rtoskernel/internal/telemetry"
)

func runCmd() *cobra.Command {
	var (
		priorities  []int
		ticks       int
		tickRate    int
		yieldAll    bool
		configPath  string
		logLevel    string
		logFormat   string
		telemetryDB string
	)

	cmd := &cobra.Command{
		Use:   "run <file.js> [file.js...]",
		Short: "Compile task bodies and run the scheduler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rtosconfig.Load(configPath)
			if tickRate > 0 {
				cfg.TickRate = tickRate
			}
			log := logging.NewLogger(logging.ParseLevel(logLevel), logFormat)

			k, err := kernel.New(cfg, rtosconfig.KernelOptions{YieldAllStatements: yieldAll}, log)
			if err != nil {
				return fmt.Errorf("construct kernel: %w", err)
			}

			if telemetryDB != "" {
				sink, err := telemetry.NewSQLiteSink(telemetryDB, log)
				if err != nil {
					return fmt.Errorf("open telemetry db: %w", err)
				}
				defer sink.Close()
				k.AddSink(sink)
			}

			handles := make([]tcb.Handle, 0, len(args))
			for i, file := range args {
				body, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
				priority := 5
				if i < len(priorities) {
					priority = priorities[i]
				}
				h, err := k.CreateTask(string(body), priority, 0, nil, filepath.Base(file))
				if err != nil {
					return fmt.Errorf("compile %s: %w", file, err)
				}
				handles = append(handles, h)
			}

			waiter := newCompletionWaiter(handles, ticks)
			k.AddSink(waiter)

			k.Start()
			<-waiter.done
			k.Stop()

			status := k.GetSystemStatus()
			fmt.Fprintf(cmd.OutOrStdout(),
				"tick=%d running=%v ready=%d blocked=%d suspended=%d total=%d\n",
				status.TickCount, status.IsRunning, status.ReadyTasks,
				status.BlockedTasks, status.SuspendedTasks, status.TotalTasks)
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&priorities, "priority", nil, "priority for the Nth task file, in order (default 5); repeatable")
	cmd.Flags().IntVar(&ticks, "ticks", 0, "number of ticks to run (0: run until every task has finished or raised)")
	cmd.Flags().IntVar(&tickRate, "tick-rate", 0, "ticks per second (overrides --config)")
	cmd.Flags().BoolVar(&yieldAll, "yield-all", false, "compile task bodies in statement-level yield mode")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a scheduler config YAML file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text|json")
	cmd.Flags().StringVar(&telemetryDB, "telemetry-db", "", "path to a SQLite database to record scheduler events into")

	return cmd
}

// completionWaiter closes done once the run's stopping condition is met.
// With ticks > 0 it fires at that tick. With ticks == 0 it tracks the
// handles it was given purely from the StatusEvent stream — never calling
// back into the Kernel, since Scheduler.Tick already holds the scheduler's
// lock for the whole event and Sink.Handle runs inside that section — and
// fires once every one of them has finished or raised. The idle task is
// never in this set, so it never blocks completion.
type completionWaiter struct {
	target int64

	mu      sync.Mutex
	pending map[tcb.Handle]struct{}
	fired   bool
	done    chan struct{}
}

func newCompletionWaiter(handles []tcb.Handle, ticks int) *completionWaiter {
	pending := make(map[tcb.Handle]struct{}, len(handles))
	for _, h := range handles {
		pending[h] = struct{}{}
	}
	return &completionWaiter{target: int64(ticks), pending: pending, done: make(chan struct{})}
}

func (w *completionWaiter) Handle(evt scheduler.StatusEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired {
		return
	}

	if evt.Kind == scheduler.StatusFinish || evt.Kind == scheduler.StatusError {
		delete(w.pending, evt.Handle)
	}

	switch {
	case w.target > 0:
		if evt.Tick >= w.target {
			w.fire()
		}
	case len(w.pending) == 0:
		w.fire()
	}
}

func (w *completionWaiter) fire() {
	w.fired = true
	close(w.done)
}
