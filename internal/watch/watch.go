// Package watch bridges OS filesystem notifications to the engine: file
// writes feed the indexer and raw create/delete events feed the tracker's
// correlation loop over a bounded channel.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/tracker"
)

// Watch starts an fsnotify watcher over every root and processes change
// events until ctx is cancelled. Newly created directories are added to
// the watch list on the fly.
//
// fsnotify reports a rename as a Rename event on the OLD path, with the
// new path arriving as a separate Create. Both are forwarded as typed
// events; pairing them back into one logical move is the tracker's job.
func Watch(ctx context.Context, roots []string, ix *index.Indexer, events chan<- tracker.FsEvent, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range roots {
		if err := addDirsRecursive(w, root); err != nil {
			logger.Warn("watcher: add root failed",
				slog.String("root", root), slog.String("error", err.Error()))
		}
	}
	logger.Info("watcher: started", slog.Int("roots", len(roots)))

	emit := func(ev tracker.FsEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, path); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", path), slog.String("error", addErr.Error()))
					}
					indexNewDir(ctx, ix, path, logger)
					continue
				}
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				if _, idxErr := ix.IndexFile(ctx, path); idxErr != nil {
					logger.Warn("watcher: index failed",
						slog.String("path", path), slog.String("error", idxErr.Error()))
				}
				emit(tracker.FsEvent{Kind: tracker.Created, Path: path, At: time.Now()})

			case ev.Op&fsnotify.Write != 0:
				if _, idxErr := ix.IndexFile(ctx, path); idxErr != nil {
					logger.Warn("watcher: reindex failed",
						slog.String("path", path), slog.String("error", idxErr.Error()))
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				emit(tracker.FsEvent{Kind: tracker.Deleted, Path: path, At: time.Now()})
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexNewDir indexes files already present in a directory that appeared
// at runtime (moves of whole trees land this way).
func indexNewDir(ctx context.Context, ix *index.Indexer, dir string, logger *slog.Logger) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, idxErr := ix.IndexFile(ctx, path); idxErr != nil {
			logger.Warn("watcher: index from new dir failed",
				slog.String("path", path), slog.String("error", idxErr.Error()))
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && len(name) > 0 && name[0] == '.' {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
