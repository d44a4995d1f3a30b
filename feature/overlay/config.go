package overlay

import "time"

// Config holds the overlay run settings.
type Config struct {
	// Workers bounds the number of tiers recomputed concurrently.
	Workers int `mapstructure:"workers" default:"3"`
	// RunTimeoutSeconds bounds the wait for tier workers; a started table still
	// runs to completion.
	RunTimeoutSeconds int `mapstructure:"run_timeout_seconds" default:"420"`
	// WriterQueue is the capacity of the pending write queue.
	WriterQueue int `mapstructure:"writer_queue" default:"256"`
	// WriterBatch is the number of writes that triggers an early flush.
	WriterBatch int `mapstructure:"writer_batch" default:"50"`
	// WriterWindowMs is the coalescing window of the writer.
	WriterWindowMs int `mapstructure:"writer_window_ms" default:"250"`
	// ExpansionDepth is how many levels of nested composite rows an expected
	// value expands. 0 only prices the target's own leaf rows.
	ExpansionDepth int `mapstructure:"expansion_depth" default:"0"`
	// ProblemSamples caps the problem samples kept per run.
	ProblemSamples int `mapstructure:"problem_samples" default:"20"`
	// ArchiveEnabled mirrors written overlays to object storage.
	ArchiveEnabled bool `mapstructure:"archive_enabled" default:"false"`
	// ArchivePrefix is the object name prefix of archived overlays.
	ArchivePrefix string `mapstructure:"archive_prefix" default:"overlays"`
	// ScheduleSeconds is the refresh-and-recompute period of the start command;
	// 0 disables the schedule.
	ScheduleSeconds int `mapstructure:"schedule_seconds" default:"900"`
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return 3
	}
	return c.Workers
}

func (c Config) runTimeout() time.Duration {
	if c.RunTimeoutSeconds <= 0 {
		return 7 * time.Minute
	}
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func (c Config) writerWindow() time.Duration {
	if c.WriterWindowMs <= 0 {
		return 250 * time.Millisecond
	}
	return time.Duration(c.WriterWindowMs) * time.Millisecond
}

func (c Config) writerBatch() int {
	if c.WriterBatch <= 0 {
		return 50
	}
	return c.WriterBatch
}

func (c Config) writerQueue() int {
	if c.WriterQueue <= 0 {
		return 256
	}
	return c.WriterQueue
}

func (c Config) problemSamples() int {
	if c.ProblemSamples < 0 {
		return 0
	}
	return c.ProblemSamples
}

// Schedule returns the period of scheduled runs, or 0 when disabled.
func (c Config) Schedule() time.Duration {
	if c.ScheduleSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ScheduleSeconds) * time.Second
}
