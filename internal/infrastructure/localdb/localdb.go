// Package localdb implements rowstore.Backend on an embedded leveldb
// database.
//
// Keys:
//
//	h/<collection>               header, JSON array
//	r/<collection>\x00<row id>   row cells, JSON array
//
// Row ids are ULIDs, so a prefix scan over a collection yields its rows in
// append order.
package localdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// localdb is locked for read-modify-write calls. Plain reads and appends go
// straight to leveldb.
type localdb struct {
	sync.Mutex
	db *leveldb.DB
}

// Open opens (or creates) the database directory at path.
func Open(path string) (rowstore.Backend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &localdb{db: db}, nil
}

// OpenMemory returns a database that lives only in memory.
func OpenMemory() (rowstore.Backend, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &localdb{db: db}, nil
}

func headerKey(name string) []byte {
	return []byte("h/" + name)
}

func rowPrefix(name string) []byte {
	return []byte("r/" + name + "\x00")
}

func rowKey(name, rowID string) []byte {
	return append(rowPrefix(name), rowID...)
}

func (l *localdb) EnsureCollection(_ context.Context, name string, header []string) error {
	l.Lock()
	defer l.Unlock()

	ok, err := l.db.Has(headerKey(name), nil)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	b, err := json.Marshal(header)
	if err != nil {
		return err
	}
	return l.db.Put(headerKey(name), b, nil)
}

func (l *localdb) Append(_ context.Context, name string, row rowstore.Row) error {
	b, err := json.Marshal(row.Cells)
	if err != nil {
		return err
	}
	return l.db.Put(rowKey(name, row.ID), b, nil)
}

func (l *localdb) Rows(_ context.Context, name string) ([]rowstore.Row, error) {
	prefix := rowPrefix(name)
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var rows []rowstore.Row
	for iter.Next() {
		var cells []string
		if err := json.Unmarshal(iter.Value(), &cells); err != nil {
			return nil, fmt.Errorf("decode row %q: %w", iter.Key(), err)
		}
		rows = append(rows, rowstore.Row{
			ID:    string(iter.Key()[len(prefix):]),
			Cells: cells,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (l *localdb) SetCells(_ context.Context, name, rowID string, cells map[int]string) error {
	l.Lock()
	defer l.Unlock()

	key := rowKey(name, rowID)
	b, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return rowstore.ErrRowNotFound
		}
		return err
	}
	var current []string
	if err := json.Unmarshal(b, &current); err != nil {
		return fmt.Errorf("decode row %s: %w", rowID, err)
	}
	for col, v := range cells {
		for len(current) <= col {
			current = append(current, "")
		}
		current[col] = v
	}
	b, err = json.Marshal(current)
	if err != nil {
		return err
	}
	return l.db.Put(key, b, nil)
}

func (l *localdb) Delete(_ context.Context, name, rowID string) error {
	l.Lock()
	defer l.Unlock()

	key := rowKey(name, rowID)
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return err
	}
	if !ok {
		return rowstore.ErrRowNotFound
	}
	return l.db.Delete(key, nil)
}

func (l *localdb) Close() error {
	return l.db.Close()
}
