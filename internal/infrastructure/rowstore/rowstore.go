// Package rowstore exposes named collections of append-ordered rows, each
// with a header, on top of a pluggable storage Backend.
//
// Every Table embeds a mutex. Single calls are safe on their own; callers that
// scan and then write (find-or-append, replace, sweep) must hold the table
// lock for the whole sequence:
//
//	t.Lock()
//	defer t.Unlock()
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-budget-api/internal/pkg/id"
)

// ErrRowNotFound is returned when a row id or position does not exist.
var ErrRowNotFound = errors.New("row not found")

// Row is one data row. ID is assigned on append, sorts in append order and
// stays stable when other rows are deleted.
type Row struct {
	ID    string
	Cells []string
}

// Cell returns the value in column i, or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Backend is the storage engine behind a Store. Implementations must return
// rows in ID order and must be safe for concurrent single calls.
type Backend interface {
	// EnsureCollection creates the collection with header if it is missing.
	EnsureCollection(ctx context.Context, name string, header []string) error
	Append(ctx context.Context, name string, row Row) error
	Rows(ctx context.Context, name string) ([]Row, error)
	// SetCells overwrites the given column indexes of one row.
	SetCells(ctx context.Context, name, rowID string, cells map[int]string) error
	Delete(ctx context.Context, name, rowID string) error
	Close() error
}

// Store hands out one Table per collection name.
type Store struct {
	backend Backend

	mu     sync.Mutex
	tables map[string]*Table
}

func New(backend Backend) *Store {
	return &Store{backend: backend, tables: make(map[string]*Table)}
}

// Collection gets or lazily creates the named collection. The header is only
// written when the collection does not exist yet.
func (s *Store) Collection(ctx context.Context, name string, header []string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	if err := s.backend.EnsureCollection(ctx, name, header); err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", name, err)
	}
	t := &Table{name: name, header: append([]string(nil), header...), backend: s.backend}
	s.tables[name] = t
	return t, nil
}

// Tables returns the collections opened so far.
func (s *Store) Tables() []*Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	return out
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Table is a handle on one collection.
type Table struct {
	sync.Mutex
	name    string
	header  []string
	backend Backend
}

func (t *Table) Name() string { return t.name }

func (t *Table) Header() []string { return append([]string(nil), t.header...) }

// Append adds a row after the last one. Cells are padded or truncated to the
// header width.
func (t *Table) Append(ctx context.Context, cells ...string) (Row, error) {
	row := Row{ID: id.New(), Cells: make([]string, len(t.header))}
	copy(row.Cells, cells)
	if err := t.backend.Append(ctx, t.name, row); err != nil {
		return Row{}, fmt.Errorf("append to %s: %w", t.name, err)
	}
	return row, nil
}

// Rows returns every data row in stored order, header excluded.
func (t *Table) Rows(ctx context.Context) ([]Row, error) {
	rows, err := t.backend.Rows(ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.name, err)
	}
	return rows, nil
}

// Find returns the first row, in stored order, accepted by match.
func (t *Table) Find(ctx context.Context, match func(Row) bool) (Row, bool, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return Row{}, false, err
	}
	for _, r := range rows {
		if match(r) {
			return r, true, nil
		}
	}
	return Row{}, false, nil
}

// SetCells overwrites columns of the row with the given id.
func (t *Table) SetCells(ctx context.Context, rowID string, cells map[int]string) error {
	for col := range cells {
		if err := t.checkColumn(col); err != nil {
			return err
		}
	}
	if err := t.backend.SetCells(ctx, t.name, rowID, cells); err != nil {
		return fmt.Errorf("update %s/%s: %w", t.name, rowID, err)
	}
	return nil
}

// Delete removes the row with the given id.
func (t *Table) Delete(ctx context.Context, rowID string) error {
	if err := t.backend.Delete(ctx, t.name, rowID); err != nil {
		return fmt.Errorf("delete %s/%s: %w", t.name, rowID, err)
	}
	return nil
}

// SetCell overwrites one cell addressed by zero-based row and column position.
func (t *Table) SetCell(ctx context.Context, rowIndex, colIndex int, value string) error {
	row, err := t.at(ctx, rowIndex)
	if err != nil {
		return err
	}
	return t.SetCells(ctx, row.ID, map[int]string{colIndex: value})
}

// DeleteRow removes the row at a zero-based position. Later rows shift up.
func (t *Table) DeleteRow(ctx context.Context, rowIndex int) error {
	row, err := t.at(ctx, rowIndex)
	if err != nil {
		return err
	}
	return t.Delete(ctx, row.ID)
}

// DeleteWhere removes every row accepted by match and returns how many went.
func (t *Table) DeleteWhere(ctx context.Context, match func(Row) bool) (int, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if !match(r) {
			continue
		}
		if err := t.Delete(ctx, r.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (t *Table) at(ctx context.Context, rowIndex int) (Row, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return Row{}, err
	}
	if rowIndex < 0 || rowIndex >= len(rows) {
		return Row{}, fmt.Errorf("%s row %d: %w", t.name, rowIndex, ErrRowNotFound)
	}
	return rows[rowIndex], nil
}

func (t *Table) checkColumn(col int) error {
	if col < 0 || col >= len(t.header) {
		return fmt.Errorf("%s has no column %d", t.name, col)
	}
	return nil
}
