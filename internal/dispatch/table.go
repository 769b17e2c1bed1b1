package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrTableFrozen is returned by Register after the table is in use.
var ErrTableFrozen = errors.New("dispatch table is frozen")

// HandlerFunc runs one command against validated arguments.
type HandlerFunc func(ctx context.Context, sess *Session, p Params) (Result, error)

// Command is one dispatch table entry.
type Command struct {
	ID      int
	Name    string
	Schema  Schema
	Handler HandlerFunc
}

// Table maps command ids to commands. It is filled at start-up and frozen
// when a Dispatcher takes ownership.
type Table struct {
	commands map[int]Command
	frozen   bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{commands: make(map[int]Command)}
}

// Register adds cmd. Ids must be unique.
func (t *Table) Register(cmd Command) error {
	if t.frozen {
		return ErrTableFrozen
	}
	if cmd.Handler == nil {
		return fmt.Errorf("register command %d: nil handler", cmd.ID)
	}
	if existing, ok := t.commands[cmd.ID]; ok {
		return fmt.Errorf("register command %d (%s): id taken by %s", cmd.ID, cmd.Name, existing.Name)
	}
	t.commands[cmd.ID] = cmd
	return nil
}

// Lookup returns the command registered under id.
func (t *Table) Lookup(id int) (Command, bool) {
	cmd, ok := t.commands[id]
	return cmd, ok
}

// IDs returns the registered ids in ascending order.
func (t *Table) IDs() []int {
	ids := make([]int, 0, len(t.commands))
	for id := range t.commands {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Freeze makes the table read-only.
func (t *Table) Freeze() { t.frozen = true }
