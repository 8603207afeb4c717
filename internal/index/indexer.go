package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/extract"
)

// junkDirs are directory names that are never worth indexing.
var junkDirs = map[string]struct{}{
	"node_modules": {},
	"__pycache__":  {},
	".git":         {},
}

// junkFiles are file names that are never worth indexing.
var junkFiles = map[string]struct{}{
	".DS_Store": {},
	"Thumbs.db": {},
}

// IndexerConfig tunes indexing behaviour.
type IndexerConfig struct {
	// MaxFileSize is the skip ceiling for a single file. Zero means 1 GiB.
	MaxFileSize int64
	// HashCap bounds how many leading bytes feed the content fingerprint.
	HashCap int64
	// ReanalyzeInterval forces a refresh of unchanged files after this
	// long. Zero means 24h.
	ReanalyzeInterval time.Duration
	// Workers sizes the directory-walk worker pool. Zero means
	// min(NumCPU, 5).
	Workers int
	// Roots are the configured index roots. Their own path components are
	// exempt from the hidden-directory rule, so a root like ~/.notes is
	// indexable while hidden entries below it are still skipped.
	Roots []string
}

func (c *IndexerConfig) normalize() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 1 << 30
	}
	if c.HashCap <= 0 {
		c.HashCap = checksum.DefaultCap
	}
	if c.ReanalyzeInterval <= 0 {
		c.ReanalyzeInterval = 24 * time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = min(runtime.NumCPU(), 5)
	}
}

// Indexer walks directory trees and upserts file records through the store.
type Indexer struct {
	store     *Store
	extractor extract.Extractor
	logger    *slog.Logger
	cfg       IndexerConfig
}

// NewIndexer builds an Indexer over the store and extraction collaborator.
func NewIndexer(store *Store, extractor extract.Extractor, logger *slog.Logger, cfg IndexerConfig) *Indexer {
	cfg.normalize()
	return &Indexer{store: store, extractor: extractor, logger: logger, cfg: cfg}
}

// WalkStats counts the outcome of a directory pass.
type WalkStats struct {
	Indexed int64 `json:"indexed"`
	Skipped int64 `json:"skipped"`
	Failed  int64 `json:"failed"`
}

// IndexFile fingerprints and upserts one file. It returns true when the
// file is indexed OR when the stored fingerprint matches and the record
// was analyzed recently enough that no write is needed.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("index: stat %s: %w", path, err)
	}
	if info.IsDir() || !ix.shouldIndex(path, info.Size()) {
		return false, nil
	}

	hash, err := checksum.SumFile(path, ix.cfg.HashCap)
	if err != nil {
		return false, err
	}

	conn, err := ix.store.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer ix.store.pool.Release(conn)

	// Change detection: the stored content hash is the single source of
	// truth. Unchanged and recently analyzed means an idempotent no-op.
	var storedHash string
	var lastAnalyzed float64
	row := conn.DB().QueryRowContext(ctx,
		`SELECT content_hash, last_analyzed FROM files WHERE path = ?`, path)
	if scanErr := row.Scan(&storedHash, &lastAnalyzed); scanErr == nil {
		if storedHash == hash && unixNow()-lastAnalyzed < ix.cfg.ReanalyzeInterval.Seconds() {
			return true, nil
		}
	}

	category, mediaType := Classify(filepath.Ext(path))

	status := ProcessingStatus{Status: "pending", Steps: []string{"content_extraction"}}
	text, ok, meta := ix.extractor.ExtractContent(path)
	if ok {
		status.Steps = append(status.Steps, "content_extraction_success")
	} else {
		// Extraction failure is non-fatal: the record is still written
		// with empty text so the file stays discoverable by name/path.
		status.Steps = append(status.Steps, "content_extraction_failed")
		text = ""
	}
	status.Status = "completed"
	status.CompletedAt = unixNow()

	metaJSON := marshalMeta(meta)
	now := unixNow()

	_, err = conn.DB().ExecContext(ctx, `
		INSERT INTO files (path, name, extension, size, modified_time, content_hash,
		                   text_content, category, media_type, processing_status,
		                   metadata_json, indexed_at, last_analyzed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name              = excluded.name,
			extension         = excluded.extension,
			size              = excluded.size,
			modified_time     = excluded.modified_time,
			content_hash      = excluded.content_hash,
			text_content      = excluded.text_content,
			category          = excluded.category,
			media_type        = excluded.media_type,
			processing_status = excluded.processing_status,
			metadata_json     = excluded.metadata_json,
			indexed_at        = excluded.indexed_at,
			last_analyzed     = excluded.last_analyzed
	`,
		path, info.Name(), strings.ToLower(filepath.Ext(path)), info.Size(),
		float64(info.ModTime().UnixMilli())/1000, hash,
		text, category, mediaType, status.marshal(),
		metaJSON, now, now)
	if err != nil {
		return false, fmt.Errorf("index: upsert %s: %w", path, err)
	}
	return true, nil
}

// IndexDirectory walks root and indexes every eligible file using a
// bounded worker pool.
func (ix *Indexer) IndexDirectory(ctx context.Context, root string) (WalkStats, error) {
	var stats WalkStats

	if _, err := os.Stat(root); err != nil {
		return stats, fmt.Errorf("index: walk root %s: %w", root, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			name := d.Name()
			if _, junk := junkDirs[name]; junk || (strings.HasPrefix(name, ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}

		info, infoErr := d.Info()
		if infoErr != nil || !ix.shouldIndex(path, info.Size()) {
			atomic.AddInt64(&stats.Skipped, 1)
			return nil
		}

		g.Go(func() error {
			indexed, idxErr := ix.IndexFile(gctx, path)
			switch {
			case idxErr != nil:
				atomic.AddInt64(&stats.Failed, 1)
				ix.logger.Warn("index: file failed",
					slog.String("path", path), slog.String("error", idxErr.Error()))
			case indexed:
				atomic.AddInt64(&stats.Indexed, 1)
			default:
				atomic.AddInt64(&stats.Skipped, 1)
			}
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	if walkErr != nil && walkErr != ctx.Err() {
		return stats, fmt.Errorf("index: walk %s: %w", root, walkErr)
	}

	ix.logger.Info("index: directory pass complete",
		slog.String("root", root),
		slog.Int64("indexed", stats.Indexed),
		slog.Int64("skipped", stats.Skipped),
		slog.Int64("failed", stats.Failed))
	return stats, nil
}

// shouldIndex applies the hidden-path, junk, and size-ceiling rules to
// the path components below the configured root.
func (ix *Indexer) shouldIndex(path string, size int64) bool {
	if size > ix.cfg.MaxFileSize {
		return false
	}
	base := filepath.Base(path)
	if _, junk := junkFiles[base]; junk {
		return false
	}
	for _, part := range strings.Split(ix.belowRoot(path), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
		if _, junk := junkDirs[part]; junk {
			return false
		}
	}
	return true
}

// belowRoot strips the longest matching configured root prefix so the
// root's own components never trip the hidden check. Paths outside any
// root are returned whole.
func (ix *Indexer) belowRoot(path string) string {
	clean := filepath.ToSlash(filepath.Clean(path))
	best := ""
	for _, root := range ix.cfg.Roots {
		r := filepath.ToSlash(filepath.Clean(root))
		if (clean == r || strings.HasPrefix(clean, r+"/")) && len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return clean
	}
	return strings.TrimPrefix(clean[len(best):], "/")
}

func marshalMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return "{}"
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
