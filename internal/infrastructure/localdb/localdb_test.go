package localdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/go-budget-api/internal/infrastructure/rowstore/rowstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDB_Conformance(t *testing.T) {
	rowstoretest.Run(t, func(t *testing.T) rowstore.Backend {
		b, err := OpenMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	})
}

func TestLocalDB_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows")
	ctx := context.Background()
	header := []string{"Email", "MonthKey", "Data", "Updated"}

	b, err := Open(path)
	require.NoError(t, err)
	tbl, err := rowstore.New(b).Collection(ctx, "BudgetData", header)
	require.NoError(t, err)
	_, err = tbl.Append(ctx, "a@b.com", "2024-01", `{"income":10}`, "t")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = Open(path)
	require.NoError(t, err)
	defer b.Close()
	tbl, err = rowstore.New(b).Collection(ctx, "BudgetData", header)
	require.NoError(t, err)
	rows, err := tbl.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `{"income":10}`, rows[0].Cell(2))
}

func TestLocalDB_HeaderWrittenOnce(t *testing.T) {
	b, err := OpenMemory()
	require.NoError(t, err)
	defer b.Close()
	l := b.(*localdb)
	ctx := context.Background()

	require.NoError(t, l.EnsureCollection(ctx, "Users", []string{"Email"}))
	require.NoError(t, l.EnsureCollection(ctx, "Users", []string{"Other"}))

	got, err := l.db.Get(headerKey("Users"), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["Email"]`, string(got))
}
