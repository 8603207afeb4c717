// Package pool manages a bounded set of SQLite connections shared by the
// indexer, query engine, and tracker. Every database access in the engine
// goes through a pooled connection; no component opens one on its own.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/raido/internal/apperr"
)

// Config controls pool sizing and recycling behaviour.
type Config struct {
	DSN            string
	MaxConnections int
	MinIdle        int
	AcquireTimeout time.Duration
	MaxIdleTime    time.Duration
	SweepInterval  time.Duration
}

func (c *Config) normalize() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.MinIdle <= 0 {
		c.MinIdle = 2
	}
	if c.MinIdle > c.MaxConnections {
		c.MinIdle = c.MaxConnections
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 10 * time.Second
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// Conn is a single pooled SQLite connection. Each Conn owns its own
// *sql.DB capped at one underlying connection, so a Conn is never shared
// between two concurrent borrowers.
type Conn struct {
	db       *sql.DB
	lastUsed time.Time
}

// DB exposes the underlying handle for query execution.
func (c *Conn) DB() *sql.DB { return c.db }

// Pool is a bounded, validating SQLite connection pool.
//
// Invariant: checkedOut + len(idle) <= cfg.MaxConnections at all times.
// All mutable state is guarded by mu; waiters block on a buffered slot
// channel rather than spinning.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	idle       []*Conn
	checkedOut int
	closed     bool

	// slots carries one token per available capacity unit. Acquire takes
	// a token (or times out); Release and destroy return it.
	slots chan struct{}

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates the pool, pre-warms MinIdle connections, and starts the
// idle sweeper.
func New(cfg Config, logger *slog.Logger) (*Pool, error) {
	cfg.normalize()
	p := &Pool{
		cfg:       cfg,
		logger:    logger,
		slots:     make(chan struct{}, cfg.MaxConnections),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	for i := 0; i < cfg.MaxConnections; i++ {
		p.slots <- struct{}{}
	}

	for i := 0; i < cfg.MinIdle; i++ {
		c, err := p.open()
		if err != nil {
			p.closeIdleLocked()
			return nil, err
		}
		p.idle = append(p.idle, c)
	}

	go p.sweep()
	return p, nil
}

func (p *Pool) open() (*Conn, error) {
	db, err := sql.Open("sqlite3", p.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pool: open connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pool: ping: %w", err)
	}
	return &Conn{db: db, lastUsed: time.Now()}, nil
}

// valid runs the liveness probe.
func valid(c *Conn) bool {
	var one int
	return c.db.QueryRow(`SELECT 1`).Scan(&one) == nil
}

// Acquire returns a validated connection, blocking up to the configured
// acquire timeout. When the pool is saturated for the whole wait it
// returns apperr.ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case <-p.slots:
	case <-timer.C:
		return nil, apperr.ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.slots <- struct{}{}
		return nil, fmt.Errorf("pool: closed")
	}
	var c *Conn
	if n := len(p.idle); n > 0 {
		c = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.checkedOut++
	p.mu.Unlock()

	if c == nil {
		fresh, err := p.open()
		if err != nil {
			p.giveBackSlot()
			return nil, err
		}
		c = fresh
	} else if !valid(c) {
		// Invalid connections are replaced transparently; the caller
		// never observes apperr.ErrInvalidConnection.
		p.logger.Warn("pool: replacing invalid connection")
		c.db.Close()
		fresh, err := p.open()
		if err != nil {
			p.giveBackSlot()
			return nil, err
		}
		c = fresh
	}

	c.lastUsed = time.Now()
	return c, nil
}

func (p *Pool) giveBackSlot() {
	p.mu.Lock()
	p.checkedOut--
	p.mu.Unlock()
	p.slots <- struct{}{}
}

// Release returns a connection to the idle set, or destroys it when the
// liveness probe fails.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}
	ok := valid(c)

	p.mu.Lock()
	p.checkedOut--
	if ok && !p.closed {
		c.lastUsed = time.Now()
		p.idle = append(p.idle, c)
	} else {
		ok = false
	}
	p.mu.Unlock()

	if !ok {
		c.db.Close()
	}
	p.slots <- struct{}{}
}

// sweep evicts idle connections unused for longer than MaxIdleTime,
// never dropping below the MinIdle floor.
func (p *Pool) sweep() {
	defer close(p.sweepDone)
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopSweep:
			return
		case <-ticker.C:
			p.evictIdle(time.Now())
		}
	}
}

func (p *Pool) evictIdle(now time.Time) {
	var evict []*Conn

	p.mu.Lock()
	keep := make([]*Conn, 0, len(p.idle))
	remaining := len(p.idle)
	for _, c := range p.idle {
		if remaining > p.cfg.MinIdle && now.Sub(c.lastUsed) > p.cfg.MaxIdleTime {
			evict = append(evict, c)
			remaining--
			continue
		}
		keep = append(keep, c)
	}
	p.idle = keep
	p.mu.Unlock()

	for _, c := range evict {
		c.db.Close()
		p.logger.Debug("pool: evicted idle connection")
	}
}

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	MaxConnections int `json:"max_connections"`
	Idle           int `json:"idle"`
	CheckedOut     int `json:"checked_out"`
}

// Stats returns the current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxConnections: p.cfg.MaxConnections,
		Idle:           len(p.idle),
		CheckedOut:     p.checkedOut,
	}
}

func (p *Pool) closeIdleLocked() {
	for _, c := range p.idle {
		c.db.Close()
	}
	p.idle = nil
}

// Shutdown stops the sweeper, closes idle connections immediately, and
// waits for in-flight connections to be returned until ctx expires, at
// which point remaining capacity is abandoned (the per-Conn handles are
// closed by their borrowers' Release calls failing over to destroy).
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.stopSweep)
	<-p.sweepDone

	p.mu.Lock()
	p.closed = true
	p.closeIdleLocked()
	p.mu.Unlock()

	// Drain the full capacity. Free tokens come back instantly; each
	// in-flight connection returns its token only on Release, so draining
	// all of them waits for exactly the borrowed connections.
	for i := 0; i < p.cfg.MaxConnections; i++ {
		select {
		case <-p.slots:
		case <-ctx.Done():
			return fmt.Errorf("pool: shutdown grace elapsed with %d connections in flight",
				p.cfg.MaxConnections-i)
		}
	}
	return nil
}
