package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/extract"
	"github.com/starford/raido/internal/pool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	p, err := pool.New(pool.Config{
		DSN:            DSN(filepath.Join(t.TempDir(), "index.db")),
		MaxConnections: 5,
		MinIdle:        1,
		AcquireTimeout: 2 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	s, err := NewStore(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestIndexer(t *testing.T, s *Store) *Indexer {
	t.Helper()
	return NewIndexer(s, extract.PlainText{}, testLogger(), IndexerConfig{})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEscapeQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"hello world", "hello world"},
		{"report.pdf", `"report.pdf"`},
		{"foo(bar)", `"foo(bar)"`},
		{"wild*card", `"wild*card"`},
		{`say "hi"`, `"say ""hi"""`},
		{"dash-name", `"dash-name"`},
	}
	for _, tc := range cases {
		if got := EscapeQuery(tc.in); got != tc.want {
			t.Errorf("EscapeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTrimPhraseQuotes(t *testing.T) {
	if got := trimPhraseQuotes(`"report.pdf"`); got != "report.pdf" {
		t.Errorf("got %q", got)
	}
	if got := trimPhraseQuotes(`"say ""hi"""`); got != `say "hi"` {
		t.Errorf("got %q", got)
	}
	if got := trimPhraseQuotes("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestCacheKeyDistinct(t *testing.T) {
	base := cacheKey("query", nil, 10)
	if cacheKey("query", nil, 20) == base {
		t.Error("limit should feed the cache key")
	}
	if cacheKey("query", []string{"/a"}, 10) == base {
		t.Error("directory filter should feed the cache key")
	}
	if cacheKey("other", nil, 10) == base {
		t.Error("query should feed the cache key")
	}
	if cacheKey("query", nil, 10) != base {
		t.Error("identical inputs should produce identical keys")
	}
}

func TestIndexFileAndGetFile(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()

	path := writeFile(t, t.TempDir(), "hello.txt", "alpha bravo charlie")

	indexed, err := ix.IndexFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !indexed {
		t.Fatal("expected file to be indexed")
	}

	rec, err := s.GetFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "hello.txt" || rec.Extension != ".txt" {
		t.Errorf("name/ext = %s/%s", rec.Name, rec.Extension)
	}
	if rec.Category != "text" || rec.MediaType != MediaText {
		t.Errorf("category/media = %s/%s", rec.Category, rec.MediaType)
	}
	if rec.ContentHash == "" {
		t.Error("content hash not recorded")
	}
	if rec.TextContent != "alpha bravo charlie" {
		t.Errorf("text content = %q", rec.TextContent)
	}
	if rec.ProcessingStatus.Status != "completed" {
		t.Errorf("processing status = %+v", rec.ProcessingStatus)
	}
}

func TestIndexFileUnchangedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()

	path := writeFile(t, t.TempDir(), "stable.txt", "unchanging content")

	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	first, err := s.GetFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}

	indexed, err := ix.IndexFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !indexed {
		t.Fatal("unchanged file should still report success")
	}

	second, err := s.GetFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if second.IndexedAt != first.IndexedAt {
		t.Error("unchanged file within the reanalysis window should not be rewritten")
	}
}

func TestIndexFileDetectsContentChange(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "doc.txt", "first version")
	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	before, _ := s.GetFile(ctx, path)

	writeFile(t, dir, "doc.txt", "second version entirely")
	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	after, _ := s.GetFile(ctx, path)

	if before.ContentHash == after.ContentHash {
		t.Error("content hash should change with content")
	}
	if after.TextContent != "second version entirely" {
		t.Errorf("text content = %q", after.TextContent)
	}
}

func TestSearchFindsByContent(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	target := writeFile(t, dir, "notes.txt", "quarterly zebra report")
	other := writeFile(t, dir, "other.txt", "unrelated contents")
	for _, p := range []string{target, other} {
		if _, err := ix.IndexFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search(ctx, "zebra", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Path != target {
		t.Errorf("path = %s, want %s", results[0].Path, target)
	}
}

func TestSearchRanksMultipleMatches(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	a := writeFile(t, dir, "a.txt", "hello world")
	b := writeFile(t, dir, "b.txt", "hello there")
	c := writeFile(t, dir, "c.txt", "goodbye")
	for _, p := range []string{a, b, c} {
		if _, err := ix.IndexFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search(ctx, "hello", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	hits := map[string]bool{}
	for _, r := range results {
		hits[r.Path] = true
		if r.Score < 0 {
			t.Errorf("score for %s = %f, want >= 0", r.Path, r.Score)
		}
	}
	if !hits[a] || !hits[b] {
		t.Errorf("hits = %v, want both %s and %s", hits, a, b)
	}

	limited, err := s.Search(ctx, "hello", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited results = %d, want 1", len(limited))
	}

	miss, err := s.Search(ctx, "submarine", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(miss) != 0 {
		t.Fatalf("miss results = %d, want 0", len(miss))
	}
}

func TestSearchEmptyQueryBrowsesNewest(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	older := writeFile(t, dir, "older.txt", "old")
	newer := writeFile(t, dir, "newer.txt", "new")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{older, newer} {
		if _, err := ix.IndexFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search(ctx, "   ", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Path != newer {
		t.Errorf("first result = %s, want newest %s", results[0].Path, newer)
	}

	limited, err := s.Search(ctx, "", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited results = %d, want 1", len(limited))
	}
}

func TestSearchDirectoryFilter(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	root := t.TempDir()

	inside := writeFile(t, root, filepath.Join("projects", "match.txt"), "falcon notes")
	outside := writeFile(t, root, filepath.Join("archive", "match.txt"), "falcon notes")
	for _, p := range []string{inside, outside} {
		if _, err := ix.IndexFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search(ctx, "falcon", []string{filepath.Join(root, "projects")}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Path != inside {
		t.Errorf("path = %s, want %s", results[0].Path, inside)
	}
}

func TestSearchServesFromCache(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "cached.txt", "penguin colony data")
	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	first, err := s.Search(ctx, "penguin", nil, 10)
	if err != nil || len(first) != 1 {
		t.Fatalf("first search: %v, %d results", err, len(first))
	}

	// Removing the row does not affect the cached result set.
	if err := s.DeleteFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	second, err := s.Search(ctx, "penguin", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 1 {
		t.Fatalf("cached search = %d results, want 1", len(second))
	}

	// Invalidation forces a recompute against the live table.
	if err := s.InvalidateCache(ctx); err != nil {
		t.Fatal(err)
	}
	third, err := s.Search(ctx, "penguin", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(third) != 0 {
		t.Fatalf("post-invalidation search = %d results, want 0", len(third))
	}
}

func TestEmptyResultsNotCached(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	results, err := s.Search(ctx, "walrus", nil, 10)
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty miss, got %v, %d", err, len(results))
	}

	path := writeFile(t, dir, "late.txt", "walrus sighting")
	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	results, err = s.Search(ctx, "walrus", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatal("a cached empty result masked the freshly indexed file")
	}
}

func TestCacheExpiryIsPurged(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "ttl.txt", "ephemeral heron entry")
	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	s.SetCacheTTL(50 * time.Millisecond)
	if _, err := s.Search(ctx, "heron", nil, 10); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)

	purged, err := s.PurgeExpiredCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if purged < 1 {
		t.Fatalf("purged = %d, want >= 1", purged)
	}
}

func TestGetFileNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetFile(context.Background(), "/no/such/file.txt"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteFileRemovesFromSearch(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeFile(t, dir, "gone.txt", "mongoose records")
	if _, err := ix.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, "mongoose", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("results after delete = %d, want 0", len(results))
	}
	if _, err := s.GetFile(ctx, path); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIndexDirectorySkipsJunk(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	root := t.TempDir()

	keep := writeFile(t, root, "keep.txt", "useful")
	writeFile(t, root, filepath.Join("node_modules", "dep.js"), "module.exports = {}")
	writeFile(t, root, filepath.Join(".git", "HEAD"), "ref: refs/heads/main")
	writeFile(t, root, ".hidden.txt", "secret")
	writeFile(t, root, ".DS_Store", "finder junk")

	stats, err := ix.IndexDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Indexed != 1 {
		t.Fatalf("indexed = %d, want 1", stats.Indexed)
	}

	if _, err := s.GetFile(ctx, keep); err != nil {
		t.Errorf("keep.txt missing from index: %v", err)
	}
	for _, junk := range []string{
		filepath.Join(root, "node_modules", "dep.js"),
		filepath.Join(root, ".git", "HEAD"),
		filepath.Join(root, ".hidden.txt"),
		filepath.Join(root, ".DS_Store"),
	} {
		if _, err := s.GetFile(ctx, junk); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("%s should not be indexed", junk)
		}
	}
}

func TestIndexDirectoryHiddenRoot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := filepath.Join(t.TempDir(), ".notes")
	ix := NewIndexer(s, extract.PlainText{}, testLogger(), IndexerConfig{Roots: []string{root}})

	keep := writeFile(t, root, "journal.txt", "entries under a hidden root")
	writeFile(t, root, filepath.Join(".cache", "blob.txt"), "still hidden")

	stats, err := ix.IndexDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Indexed != 1 {
		t.Fatalf("indexed = %d, want 1", stats.Indexed)
	}
	if _, err := s.GetFile(ctx, keep); err != nil {
		t.Errorf("file under hidden root missing from index: %v", err)
	}
	if _, err := s.GetFile(ctx, filepath.Join(root, ".cache", "blob.txt")); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("hidden subdirectory below the root should still be skipped")
	}
}

func TestRecentPaths(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	fresh := writeFile(t, dir, "fresh.txt", "recent change")
	stale := writeFile(t, dir, "stale.txt", "ancient history")
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{fresh, stale} {
		if _, err := ix.IndexFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := s.RecentPaths(ctx, time.Now().Add(-2*time.Hour), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != fresh {
		t.Fatalf("paths = %v, want [%s]", paths, fresh)
	}
}

func TestStatsCounts(t *testing.T) {
	s := newTestStore(t)
	ix := newTestIndexer(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"a.txt", "b.txt"} {
		p := writeFile(t, dir, name, "stat me "+name)
		if _, err := ix.IndexFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("total files = %d, want 2", stats.TotalFiles)
	}
	if stats.IndexedLast24 != 2 {
		t.Errorf("indexed last 24h = %d, want 2", stats.IndexedLast24)
	}
	var textCount int64
	for _, c := range stats.ByCategory {
		if c.Category == "text" {
			textCount = c.Count
		}
	}
	if textCount != 2 {
		t.Errorf("text category count = %d, want 2", textCount)
	}
}
