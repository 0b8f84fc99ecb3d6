package rowstore

import (
	"context"
	"sync"
)

type memCollection struct {
	header []string
	rows   []Row
}

// MemoryBackend holds all collections in process memory. Data is lost on
// restart; it backs tests and STORE_DRIVER=memory.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memCollection)}
}

func (m *MemoryBackend) EnsureCollection(_ context.Context, name string, header []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; !ok {
		m.collections[name] = &memCollection{header: append([]string(nil), header...)}
	}
	return nil
}

func (m *MemoryBackend) Append(_ context.Context, name string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(name)
	c.rows = append(c.rows, cloneRow(row))
	return nil
}

func (m *MemoryBackend) Rows(_ context.Context, name string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	out := make([]Row, len(c.rows))
	for i, r := range c.rows {
		out[i] = cloneRow(r)
	}
	return out, nil
}

func (m *MemoryBackend) SetCells(_ context.Context, name, rowID string, cells map[int]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(name)
	i := c.index(rowID)
	if i < 0 {
		return ErrRowNotFound
	}
	for col, v := range cells {
		for len(c.rows[i].Cells) <= col {
			c.rows[i].Cells = append(c.rows[i].Cells, "")
		}
		c.rows[i].Cells[col] = v
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, name, rowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(name)
	i := c.index(rowID)
	if i < 0 {
		return ErrRowNotFound
	}
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// collection must be called with m.mu held for writing.
func (m *MemoryBackend) collection(name string) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{}
		m.collections[name] = c
	}
	return c
}

func (c *memCollection) index(rowID string) int {
	for i, r := range c.rows {
		if r.ID == rowID {
			return i
		}
	}
	return -1
}

func cloneRow(r Row) Row {
	return Row{ID: r.ID, Cells: append([]string(nil), r.Cells...)}
}
