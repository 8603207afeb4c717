// Package engine wires the pool, store, indexer, query engine, tracker,
// and scheduler into one explicitly constructed object. There is no
// module-level state: the Engine is built once at process start and
// passed to every consumer.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/extract"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/pool"
	"github.com/starford/raido/internal/scheduler"
	"github.com/starford/raido/internal/tracker"
)

// Config assembles per-component configuration.
type Config struct {
	DatabasePath string
	Roots        []string
	Pool         pool.Config
	Indexer      index.IndexerConfig
	Tracker      tracker.Config
	Scheduler    scheduler.Config
	CacheTTL     time.Duration
	// EventBuffer sizes the watcher->tracker channel. Zero means 256.
	EventBuffer int
}

// Engine owns every component of the file index and search subsystem.
type Engine struct {
	logger *slog.Logger
	roots  []string

	pool      *pool.Pool
	store     *index.Store
	indexer   *index.Indexer
	tracker   *tracker.Tracker
	scheduler *scheduler.Scheduler

	events chan tracker.FsEvent
}

// New builds the engine: opens the pool, applies the schema (fatal on
// corruption), and constructs the components around the shared store.
func New(ctx context.Context, cfg Config, extractor extract.Extractor, logger *slog.Logger) (*Engine, error) {
	if cfg.Pool.DSN == "" {
		cfg.Pool.DSN = index.DSN(cfg.DatabasePath)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	if extractor == nil {
		extractor = extract.PlainText{}
	}
	if len(cfg.Indexer.Roots) == 0 {
		cfg.Indexer.Roots = cfg.Roots
	}

	p, err := pool.New(cfg.Pool, logger)
	if err != nil {
		return nil, err
	}

	store, err := index.NewStore(ctx, p)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(shutdownCtx)
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		store.SetCacheTTL(cfg.CacheTTL)
	}

	e := &Engine{
		logger:  logger,
		roots:   cfg.Roots,
		pool:    p,
		store:   store,
		indexer: index.NewIndexer(store, extractor, logger, cfg.Indexer),
		events:  make(chan tracker.FsEvent, cfg.EventBuffer),
	}
	e.tracker = tracker.New(store, logger, cfg.Tracker)
	e.scheduler = scheduler.New(scheduler.Tasks{
		QuickReindex: e.quickReindex,
		FullReindex:  e.fullReindex,
		Housekeeping: e.store.Housekeep,
	}, logger, cfg.Scheduler)

	return e, nil
}

// Search runs a ranked full-text query over the index.
func (e *Engine) Search(ctx context.Context, query string, dirs []string, limit int) ([]index.SearchResult, error) {
	return e.store.Search(ctx, query, dirs, limit)
}

// IndexFile indexes a single path.
func (e *Engine) IndexFile(ctx context.Context, path string) (bool, error) {
	return e.indexer.IndexFile(ctx, path)
}

// IndexDirectory walks and indexes a tree.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (index.WalkStats, error) {
	return e.indexer.IndexDirectory(ctx, root)
}

// TrackDeletion records a confirmed deletion directly (API-driven path).
func (e *Engine) TrackDeletion(ctx context.Context, path, reason string) error {
	return e.tracker.TrackDeletion(ctx, path, reason, "")
}

// TrackMovement records a move observed directly (API-driven path).
func (e *Engine) TrackMovement(ctx context.Context, src, dst, movementType, reason string) error {
	if movementType == "" {
		movementType = tracker.ClassifyMovement(dst)
	}
	return e.tracker.TrackMovement(ctx, src, dst, movementType, reason)
}

// FindDuplicates groups indexed files by content fingerprint.
func (e *Engine) FindDuplicates(ctx context.Context, limit int) ([]index.DuplicateGroup, error) {
	return e.store.FindDuplicates(ctx, limit)
}

// LargeFiles lists indexed files above the size floor.
func (e *Engine) LargeFiles(ctx context.Context, minSize int64, limit int) ([]index.FileSummary, error) {
	return e.store.LargeFiles(ctx, minSize, limit)
}

// OldFiles lists indexed files not modified within the window.
func (e *Engine) OldFiles(ctx context.Context, olderThan time.Duration, limit int) ([]index.FileSummary, error) {
	return e.store.OldFiles(ctx, olderThan, limit)
}

// RecentDeletions lists the newest deletion records.
func (e *Engine) RecentDeletions(ctx context.Context, limit int) ([]tracker.DeletionRecord, error) {
	return e.tracker.RecentDeletions(ctx, limit)
}

// RecentMovements lists the newest movement records.
func (e *Engine) RecentMovements(ctx context.Context, limit int) ([]tracker.MovementRecord, error) {
	return e.tracker.RecentMovements(ctx, limit)
}

// StatsReport bundles index, tracker, pool, and scheduler observability data.
type StatsReport struct {
	Index     *index.Stats           `json:"index"`
	Tracker   *tracker.DeletionStats `json:"tracker"`
	Pool      pool.Stats             `json:"pool"`
	Scheduler scheduler.Status       `json:"scheduler"`
}

// Stats gathers counters from every component.
func (e *Engine) Stats(ctx context.Context) (*StatsReport, error) {
	idx, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	trk, err := e.tracker.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsReport{
		Index:     idx,
		Tracker:   trk,
		Pool:      e.pool.Stats(),
		Scheduler: e.scheduler.Status(),
	}, nil
}

// Events is the bounded channel wired between the watcher and the
// tracker's correlation loop.
func (e *Engine) Events() chan tracker.FsEvent { return e.events }

// Indexer exposes the indexer for the watcher.
func (e *Engine) Indexer() *index.Indexer { return e.indexer }

// Tracker exposes the correlation loop runner.
func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

// Scheduler exposes the periodic task runner.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Roots returns the watched directory roots.
func (e *Engine) Roots() []string { return e.roots }

// quickReindex re-visits files the index saw modified after the cutoff.
func (e *Engine) quickReindex(ctx context.Context, since time.Time) error {
	paths, err := e.store.RecentPaths(ctx, since, 1000)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := e.indexer.IndexFile(ctx, p); err != nil {
			e.logger.Warn("engine: quick reindex file failed",
				slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	return nil
}

// fullReindex walks every configured root.
func (e *Engine) fullReindex(ctx context.Context) error {
	for _, root := range e.roots {
		if _, err := e.indexer.IndexDirectory(ctx, root); err != nil {
			e.logger.Warn("engine: full reindex root failed",
				slog.String("root", root), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Shutdown closes the pool after in-flight work completes or the grace
// period elapses.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.pool.Shutdown(ctx)
}
