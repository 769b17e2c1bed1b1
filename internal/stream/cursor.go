// Package stream holds result sets that are too large for a single reply
// and hands them out one row per call.
//
// A cursor is either idle (empty) or in progress (non-empty). Callers treat
// a call against an idle cursor as the start of a new stream. A producer that
// yields no rows leaves the cursor idle, so the following call starts again.
package stream

import (
	"encoding/hex"
	"fmt"
	"iter"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/hive/internal/wire"
)

// Cursor is a FIFO of pre-rendered rows. It is not safe for concurrent use;
// callers serialize access per call.
type Cursor struct {
	name string
	rows []wire.List
}

// Name returns the stream name the cursor was registered under.
func (c *Cursor) Name() string { return c.name }

// Pending returns the number of rows not yet handed out.
func (c *Cursor) Pending() int { return len(c.rows) }

// Idle reports whether the next call should start a new stream.
func (c *Cursor) Idle() bool { return len(c.rows) == 0 }

// Start drains rows into the cursor and returns how many were queued. If the
// producer fails, nothing is queued and the cursor stays idle.
func (c *Cursor) Start(rows iter.Seq2[wire.List, error]) (int, error) {
	if !c.Idle() {
		return 0, fmt.Errorf("stream %s: start while %d rows pending", c.name, len(c.rows))
	}
	var buf []wire.List
	for row, err := range rows {
		if err != nil {
			return 0, fmt.Errorf("stream %s: %w", c.name, err)
		}
		buf = append(buf, row)
	}
	c.rows = buf
	return len(buf), nil
}

// Next pops the oldest row. ok is false when the cursor is idle.
func (c *Cursor) Next() (row wire.List, ok bool) {
	if len(c.rows) == 0 {
		return nil, false
	}
	row = c.rows[0]
	c.rows[0] = nil
	c.rows = c.rows[1:]
	if len(c.rows) == 0 {
		c.rows = nil
	}
	return row, true
}

// Reset discards any pending rows.
func (c *Cursor) Reset() { c.rows = nil }

// Registry owns the process-wide cursors, one per stream name.
type Registry struct {
	mu      sync.Mutex
	cursors map[string]*Cursor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cursors: make(map[string]*Cursor)}
}

// Cursor returns the cursor for name, creating it on first use.
func (r *Registry) Cursor(name string) *Cursor {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cursors[name]
	if !ok {
		c = &Cursor{name: name}
		r.cursors[name] = c
	}
	return c
}

// NewSessionKey returns 16 random bytes rendered as 32 lowercase hex digits.
func NewSessionKey() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return hex.EncodeToString(id[:]), nil
}
