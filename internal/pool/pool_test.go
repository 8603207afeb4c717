package pool

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/raido/internal/apperr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	if cfg.DSN == "" {
		cfg.DSN = filepath.Join(t.TempDir(), "pool.db")
	}
	p, err := New(cfg, testLogger())
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

func TestAcquireRelease(t *testing.T) {
	p := testPool(t, Config{MaxConnections: 3, MinIdle: 1})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var one int
	if err := c.DB().QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil || one != 1 {
		t.Fatalf("probe = %d, %v", one, err)
	}

	st := p.Stats()
	if st.CheckedOut != 1 {
		t.Fatalf("checked out = %d, want 1", st.CheckedOut)
	}

	p.Release(c)
	st = p.Stats()
	if st.CheckedOut != 0 {
		t.Fatalf("checked out after release = %d, want 0", st.CheckedOut)
	}
	if st.Idle < 1 {
		t.Fatalf("idle after release = %d, want >= 1", st.Idle)
	}
}

func TestCapacityInvariant(t *testing.T) {
	p := testPool(t, Config{MaxConnections: 4, MinIdle: 2})
	ctx := context.Background()

	var conns []*Conn
	for i := 0; i < 4; i++ {
		c, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		conns = append(conns, c)

		st := p.Stats()
		if st.CheckedOut+st.Idle > st.MaxConnections {
			t.Fatalf("checked_out(%d) + idle(%d) > max(%d)", st.CheckedOut, st.Idle, st.MaxConnections)
		}
	}
	for _, c := range conns {
		p.Release(c)
	}

	st := p.Stats()
	if st.CheckedOut != 0 {
		t.Fatalf("checked out = %d, want 0", st.CheckedOut)
	}
	if st.CheckedOut+st.Idle > st.MaxConnections {
		t.Fatalf("invariant violated after release: %+v", st)
	}
}

func TestAcquireExhausted(t *testing.T) {
	p := testPool(t, Config{MaxConnections: 1, MinIdle: 1, AcquireTimeout: 100 * time.Millisecond})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release(c)

	if _, err := p.Acquire(ctx); err != apperr.ErrPoolExhausted {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
}

func TestAcquireAfterReleaseUnblocks(t *testing.T) {
	p := testPool(t, Config{MaxConnections: 1, MinIdle: 1, AcquireTimeout: 2 * time.Second})
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan error, 1)
	go func() {
		c2, err := p.Acquire(ctx)
		if err == nil {
			p.Release(c2)
		}
		got <- err
	}()

	time.Sleep(50 * time.Millisecond)
	p.Release(c)

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("waiter got error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never unblocked")
	}
}

func TestEvictIdleKeepsFloor(t *testing.T) {
	p := testPool(t, Config{
		MaxConnections: 5,
		MinIdle:        2,
		MaxIdleTime:    time.Millisecond,
		SweepInterval:  time.Hour, // drive eviction manually
	})
	ctx := context.Background()

	// Grow the idle set above the floor.
	var conns []*Conn
	for i := 0; i < 4; i++ {
		c, err := p.Acquire(ctx)
		if err != nil {
			t.Fatal(err)
		}
		conns = append(conns, c)
	}
	for _, c := range conns {
		p.Release(c)
	}
	if st := p.Stats(); st.Idle != 4 {
		t.Fatalf("idle = %d, want 4", st.Idle)
	}

	p.evictIdle(time.Now().Add(time.Minute))

	if st := p.Stats(); st.Idle != 2 {
		t.Fatalf("idle after eviction = %d, want MinIdle floor 2", st.Idle)
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	p, err := New(Config{
		DSN:            filepath.Join(t.TempDir(), "pool.db"),
		MaxConnections: 2,
		MinIdle:        1,
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		p.Release(c)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestShutdownGraceElapsed(t *testing.T) {
	p, err := New(Config{
		DSN:            filepath.Join(t.TempDir(), "pool.db"),
		MaxConnections: 2,
		MinIdle:        1,
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Never released.
	if _, err := p.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err == nil {
		t.Fatal("expected shutdown error with connection in flight")
	}
}

func TestShutdownSpareCapacityStillWaits(t *testing.T) {
	// Spare capacity above the in-flight count must not satisfy the
	// drain; Shutdown has to block on the borrowed connection itself.
	p, err := New(Config{
		DSN:            filepath.Join(t.TempDir(), "pool.db"),
		MaxConnections: 4,
		MinIdle:        1,
	}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := p.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	grace := 100 * time.Millisecond
	shutdownCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	start := time.Now()
	err = p.Shutdown(shutdownCtx)
	if err == nil {
		t.Fatalf("shutdown returned nil with a connection still in flight: %+v", p.Stats())
	}
	if elapsed := time.Since(start); elapsed < grace {
		t.Fatalf("shutdown gave up after %v, want the full %v grace period", elapsed, grace)
	}
}
