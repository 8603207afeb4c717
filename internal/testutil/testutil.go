// Package testutil provides shared test helpers for setting up pools and stores.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/pool"
)

// Logger returns a discard logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestPool creates a pool over a temporary SQLite database that is
// automatically cleaned up.
func TestPool(t *testing.T) *pool.Pool {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	p, err := pool.New(pool.Config{
		DSN:            index.DSN(dbFile.Name()),
		MaxConnections: 5,
		MinIdle:        1,
		AcquireTimeout: 2 * time.Second,
	}, Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

// TestStore creates a schema-initialized store over a temporary database.
func TestStore(t *testing.T) *index.Store {
	t.Helper()
	s, err := index.NewStore(context.Background(), TestPool(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}
