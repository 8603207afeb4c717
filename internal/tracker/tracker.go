package tracker

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/starford/raido/internal/index"
)

// DefaultMoveTimeout is the move correlation window: a delete unclaimed
// for this long is a genuine deletion.
const DefaultMoveTimeout = 5 * time.Second

// Config tunes the tracker.
type Config struct {
	MoveTimeout   time.Duration
	SweepInterval time.Duration
}

func (c *Config) normalize() {
	if c.MoveTimeout <= 0 {
		c.MoveTimeout = DefaultMoveTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = c.MoveTimeout
	}
}

// Tracker correlates raw delete/create/move events and persists the audit
// trail. The pending and resolved sets are guarded by one mutex: events
// arrive from the watcher goroutine while the sweep ticker reads them.
type Tracker struct {
	store  *index.Store
	logger *slog.Logger
	cfg    Config

	mu       sync.Mutex
	pending  map[string]time.Time // path -> delete observed at
	resolved map[string]time.Time // src paths of recent moves
}

// New builds a Tracker persisting through the given store.
func New(store *index.Store, logger *slog.Logger, cfg Config) *Tracker {
	cfg.normalize()
	return &Tracker{
		store:    store,
		logger:   logger,
		cfg:      cfg,
		pending:  make(map[string]time.Time),
		resolved: make(map[string]time.Time),
	}
}

// Run consumes events until ctx is cancelled, sweeping the pending set on
// its own timer. It is the single consumer of the event channel.
func (t *Tracker) Run(ctx context.Context, events <-chan FsEvent) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final sweep so shutdown does not swallow pending deletes.
			t.Sweep(context.Background(), time.Now().Add(t.cfg.MoveTimeout))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.HandleEvent(ctx, ev)
		case now := <-ticker.C:
			t.Sweep(ctx, now)
		}
	}
}

// HandleEvent advances the correlation state machine by one raw event.
func (t *Tracker) HandleEvent(ctx context.Context, ev FsEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	switch ev.Kind {
	case Deleted:
		t.onDelete(ev)
	case Created:
		t.onCreate(ctx, ev)
	case Moved:
		t.onMove(ctx, ev)
	}
}

func (t *Tracker) onDelete(ev FsEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A move reported as delete+create fires a late delete for the old
	// path; suppress it when the move already resolved.
	if at, ok := t.resolved[ev.Path]; ok && ev.At.Sub(at) < t.cfg.MoveTimeout {
		delete(t.resolved, ev.Path)
		t.logger.Debug("tracker: delete suppressed by resolved move", slog.String("path", ev.Path))
		return
	}
	t.pending[ev.Path] = ev.At
}

// onCreate tries to claim a pending delete as the other half of a move.
// Correlation keys on the base file name, a documented heuristic rather
// than content identity.
func (t *Tracker) onCreate(ctx context.Context, ev FsEvent) {
	base := filepath.Base(ev.Path)

	t.mu.Lock()
	var src string
	for p, at := range t.pending {
		if p != ev.Path && filepath.Base(p) == base && ev.At.Sub(at) < t.cfg.MoveTimeout {
			src = p
			break
		}
	}
	if src != "" {
		delete(t.pending, src)
	}
	t.mu.Unlock()

	if src == "" {
		return
	}

	mtype := ClassifyMovement(ev.Path)
	if err := t.TrackMovement(ctx, src, ev.Path, mtype, movementReason(mtype)); err != nil {
		t.logger.Warn("tracker: movement record failed",
			slog.String("from", src), slog.String("to", ev.Path),
			slog.String("error", err.Error()))
	}
}

func (t *Tracker) onMove(ctx context.Context, ev FsEvent) {
	t.mu.Lock()
	t.resolved[ev.Path] = ev.At
	delete(t.pending, ev.Path)
	t.mu.Unlock()

	mtype := ClassifyMovement(ev.NewPath)
	if err := t.TrackMovement(ctx, ev.Path, ev.NewPath, mtype, movementReason(mtype)); err != nil {
		t.logger.Warn("tracker: movement record failed",
			slog.String("from", ev.Path), slog.String("to", ev.NewPath),
			slog.String("error", err.Error()))
	}
}

// Sweep converts pending deletes older than the move window into genuine
// deletion records and drops stale resolved entries.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) {
	var expired []string

	t.mu.Lock()
	for p, at := range t.pending {
		if now.Sub(at) >= t.cfg.MoveTimeout {
			expired = append(expired, p)
			delete(t.pending, p)
		}
	}
	for p, at := range t.resolved {
		if now.Sub(at) >= t.cfg.MoveTimeout {
			delete(t.resolved, p)
		}
	}
	t.mu.Unlock()

	for _, p := range expired {
		if err := t.TrackDeletion(ctx, p, "file_system_deletion", ""); err != nil {
			t.logger.Warn("tracker: deletion record failed",
				slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

// PendingCount reports how many deletes await correlation.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// ClassifyMovement derives the movement type from destination path
// keywords. Substring matching on the path, not content identity.
func ClassifyMovement(dst string) string {
	lower := strings.ToLower(dst)
	switch {
	case strings.Contains(lower, "archive") || strings.Contains(lower, "backup"):
		return MoveArchive
	case strings.Contains(lower, "trash"):
		return MoveTrash
	case strings.Contains(lower, "tmp") || strings.Contains(lower, "temp"):
		return MoveTemporary
	default:
		return MoveReorganize
	}
}

func movementReason(movementType string) string {
	switch movementType {
	case MoveArchive:
		return "file_organization_archive"
	case MoveTrash:
		return "user_deletion"
	case MoveTemporary:
		return "temporary_storage"
	default:
		return "file_reorganization"
	}
}
