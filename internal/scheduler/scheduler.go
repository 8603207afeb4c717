// Package scheduler drives the periodic quick/full reindex passes and
// storage housekeeping. It holds no indexing logic of its own; it only
// invokes the entry points it is given, guaranteeing that no two passes
// overlap.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Tasks are the entry points the scheduler drives.
type Tasks struct {
	QuickReindex func(ctx context.Context, modifiedSince time.Time) error
	FullReindex  func(ctx context.Context) error
	Housekeeping func(ctx context.Context) error
}

// Config holds the task intervals.
type Config struct {
	QuickInterval        time.Duration
	FullInterval         time.Duration
	HousekeepingInterval time.Duration
	// QuickWindow is how far back the quick pass looks for modified
	// files. Zero means 2h.
	QuickWindow time.Duration
}

func (c *Config) normalize() {
	if c.QuickInterval <= 0 {
		c.QuickInterval = 30 * time.Minute
	}
	if c.FullInterval <= 0 {
		c.FullInterval = 2 * time.Hour
	}
	if c.HousekeepingInterval <= 0 {
		c.HousekeepingInterval = 24 * time.Hour
	}
	if c.QuickWindow <= 0 {
		c.QuickWindow = 2 * time.Hour
	}
}

// Scheduler runs the three periodic tasks. A single atomic guard keeps a
// quick pass from starting while a full pass is in flight and vice versa;
// a blocked run is skipped, never queued.
type Scheduler struct {
	tasks  Tasks
	cfg    Config
	logger *slog.Logger

	indexing atomic.Bool

	mu               sync.Mutex
	lastQuick        time.Time
	lastFull         time.Time
	lastHousekeeping time.Time
}

// New creates a Scheduler.
func New(tasks Tasks, logger *slog.Logger, cfg Config) *Scheduler {
	cfg.normalize()
	return &Scheduler{tasks: tasks, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled, firing tasks on their tickers.
func (s *Scheduler) Run(ctx context.Context) {
	quick := time.NewTicker(s.cfg.QuickInterval)
	full := time.NewTicker(s.cfg.FullInterval)
	housekeeping := time.NewTicker(s.cfg.HousekeepingInterval)
	defer quick.Stop()
	defer full.Stop()
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quick.C:
			s.RunQuick(ctx)
		case <-full.C:
			s.RunFull(ctx)
		case <-housekeeping.C:
			s.RunHousekeeping(ctx)
		}
	}
}

// RunQuick reindexes files modified within the quick window. Returns
// false when skipped because another pass holds the guard.
func (s *Scheduler) RunQuick(ctx context.Context) bool {
	if !s.indexing.CompareAndSwap(false, true) {
		s.logger.Info("scheduler: quick reindex skipped, pass in flight")
		return false
	}
	defer s.indexing.Store(false)

	since := time.Now().Add(-s.cfg.QuickWindow)
	start := time.Now()
	if err := s.tasks.QuickReindex(ctx, since); err != nil {
		s.logger.Error("scheduler: quick reindex failed", slog.String("error", err.Error()))
		return true
	}

	s.mu.Lock()
	s.lastQuick = time.Now()
	s.mu.Unlock()
	s.logger.Info("scheduler: quick reindex done", slog.Duration("elapsed", time.Since(start)))
	return true
}

// RunFull reindexes the entire watched tree. Returns false when skipped.
func (s *Scheduler) RunFull(ctx context.Context) bool {
	if !s.indexing.CompareAndSwap(false, true) {
		s.logger.Info("scheduler: full reindex skipped, pass in flight")
		return false
	}
	defer s.indexing.Store(false)

	start := time.Now()
	if err := s.tasks.FullReindex(ctx); err != nil {
		s.logger.Error("scheduler: full reindex failed", slog.String("error", err.Error()))
		return true
	}

	s.mu.Lock()
	s.lastFull = time.Now()
	s.mu.Unlock()
	s.logger.Info("scheduler: full reindex done", slog.Duration("elapsed", time.Since(start)))
	return true
}

// RunHousekeeping expires cache rows and optimizes storage. It does not
// take the indexing guard; housekeeping never touches the walk paths.
func (s *Scheduler) RunHousekeeping(ctx context.Context) {
	start := time.Now()
	if err := s.tasks.Housekeeping(ctx); err != nil {
		s.logger.Error("scheduler: housekeeping failed", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.lastHousekeeping = time.Now()
	s.mu.Unlock()
	s.logger.Info("scheduler: housekeeping done", slog.Duration("elapsed", time.Since(start)))
}

// Status is a snapshot for observability.
type Status struct {
	IsIndexing       bool      `json:"is_indexing"`
	LastQuick        time.Time `json:"last_quick,omitzero"`
	LastFull         time.Time `json:"last_full,omitzero"`
	LastHousekeeping time.Time `json:"last_housekeeping,omitzero"`
}

// Status reports guard state and last-run timestamps.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsIndexing:       s.indexing.Load(),
		LastQuick:        s.lastQuick,
		LastFull:         s.lastFull,
		LastHousekeeping: s.lastHousekeeping,
	}
}
