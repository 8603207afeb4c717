// Package apperr defines the sentinel errors shared across the engine.
package apperr

import "errors"

var (
	// ErrPoolExhausted is returned by Pool.Acquire when no connection
	// becomes available within the acquire timeout. Callers decide their
	// own retry policy; the pool never retries.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrInvalidConnection marks a connection that failed its liveness
	// probe. Recovered internally by the pool, never surfaced.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrSchemaCorruption indicates the on-disk schema could not be
	// created or verified. Fatal at startup.
	ErrSchemaCorruption = errors.New("schema corruption")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)
