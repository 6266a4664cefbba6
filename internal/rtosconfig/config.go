// Package rtosconfig loads the Kernel's tunables. It mirrors the teacher's
// internal/sched.Config/Load exactly in shape: a struct with yaml tags,
// compiled-in defaults, an optional YAML override, and post-load sanity
// clamps on every numeric field.
package rtosconfig

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// SchedulerConfig holds the tunables of §6's configuration table.
type SchedulerConfig struct {
	MaxTasks          int `yaml:"max_tasks"`
	TickRate          int `yaml:"tick_rate"`
	StackSize         int `yaml:"stack_size"`
	IdleTaskStackSize int `yaml:"idle_task_stack_size"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxTasks:          64,
		TickRate:          100,
		StackSize:         4096,
		IdleTaskStackSize: 1024,
	}
}

// Load reads YAML from path and overrides the defaults; an empty path, or
// one that can't be read, yields the defaults unchanged, matching the
// teacher's silent-fallback behavior.
func Load(path string) SchedulerConfig {
	cfg := DefaultConfig()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	_ = yaml.Unmarshal(data, &cfg)
	return clamp(cfg)
}

func clamp(cfg SchedulerConfig) SchedulerConfig {
	def := DefaultConfig()
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = def.MaxTasks
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = def.TickRate
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = def.StackSize
	}
	if cfg.IdleTaskStackSize <= 0 {
		cfg.IdleTaskStackSize = def.IdleTaskStackSize
	}
	return cfg
}

// KernelOptions is the Kernel constructor's second argument (§6).
type KernelOptions struct {
	// YieldAllStatements selects the Transformer's statement-level mode
	// when true; delay-only mode otherwise.
	YieldAllStatements bool
}

// DefaultKernelOptions returns delay-only mode, the conservative default.
func DefaultKernelOptions() KernelOptions {
	return KernelOptions{YieldAllStatements: false}
}
