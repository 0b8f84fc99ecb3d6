// Package rowstoretest holds the behaviour every rowstore.Backend must share.
package rowstoretest

import (
	"context"
	"testing"

	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend through rowstore.Store. newBackend must return an
// empty backend on every call.
func Run(t *testing.T, newBackend func(t *testing.T) rowstore.Backend) {
	t.Run("AppendAndReadInOrder", func(t *testing.T) {
		tbl := open(t, newBackend(t), "Bills", "Email", "Bills", "Updated")
		ctx := context.Background()

		for _, e := range []string{"a@b.com", "c@d.com", "e@f.com"} {
			_, err := tbl.Append(ctx, e, "[]", "t")
			require.NoError(t, err)
		}
		rows, err := tbl.Rows(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "a@b.com", rows[0].Cell(0))
		assert.Equal(t, "c@d.com", rows[1].Cell(0))
		assert.Equal(t, "e@f.com", rows[2].Cell(0))
	})

	t.Run("AppendPadsToHeaderWidth", func(t *testing.T) {
		tbl := open(t, newBackend(t), "Users", "Email", "First Login", "Last Login", "Login Count")
		ctx := context.Background()

		_, err := tbl.Append(ctx, "a@b.com")
		require.NoError(t, err)
		rows, err := tbl.Rows(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"a@b.com", "", "", ""}, rows[0].Cells)
	})

	t.Run("EmptyCollectionHasNoRows", func(t *testing.T) {
		tbl := open(t, newBackend(t), "Sessions", "Email", "Token", "Expiry", "Created")
		rows, err := tbl.Rows(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("SetCellByPosition", func(t *testing.T) {
		tbl := open(t, newBackend(t), "BudgetData", "Email", "MonthKey", "Data", "Updated")
		ctx := context.Background()
		_, err := tbl.Append(ctx, "a@b.com", "2024-01", `{"v":1}`, "t0")
		require.NoError(t, err)
		_, err = tbl.Append(ctx, "a@b.com", "2024-02", `{"v":2}`, "t0")
		require.NoError(t, err)

		require.NoError(t, tbl.SetCell(ctx, 1, 2, `{"v":3}`))

		rows, err := tbl.Rows(ctx)
		require.NoError(t, err)
		assert.Equal(t, `{"v":1}`, rows[0].Cell(2))
		assert.Equal(t, `{"v":3}`, rows[1].Cell(2))
		assert.Equal(t, "2024-02", rows[1].Cell(1))
	})

	t.Run("SetCellsByID", func(t *testing.T) {
		tbl := open(t, newBackend(t), "Users", "Email", "First Login", "Last Login", "Login Count")
		ctx := context.Background()
		row, err := tbl.Append(ctx, "a@b.com", "t0", "t0", "1")
		require.NoError(t, err)

		require.NoError(t, tbl.SetCells(ctx, row.ID, map[int]string{2: "t1", 3: "2"}))

		rows, err := tbl.Rows(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a@b.com", "t0", "t1", "2"}, rows[0].Cells)
	})

	t.Run("DeleteRowShiftsLaterRows", func(t *testing.T) {
		tbl := open(t, newBackend(t), "OTPStore", "Email", "OTP", "Expiry")
		ctx := context.Background()
		for _, e := range []string{"a@b.com", "c@d.com", "e@f.com"} {
			_, err := tbl.Append(ctx, e, "123456", "0")
			require.NoError(t, err)
		}

		require.NoError(t, tbl.DeleteRow(ctx, 1))

		rows, err := tbl.Rows(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "a@b.com", rows[0].Cell(0))
		assert.Equal(t, "e@f.com", rows[1].Cell(0))
	})

	t.Run("OutOfRangePosition", func(t *testing.T) {
		tbl := open(t, newBackend(t), "OTPStore", "Email", "OTP", "Expiry")
		ctx := context.Background()
		assert.ErrorIs(t, tbl.DeleteRow(ctx, 0), rowstore.ErrRowNotFound)
		assert.ErrorIs(t, tbl.SetCell(ctx, -1, 0, "x"), rowstore.ErrRowNotFound)
	})

	t.Run("UnknownRowID", func(t *testing.T) {
		tbl := open(t, newBackend(t), "OTPStore", "Email", "OTP", "Expiry")
		ctx := context.Background()
		assert.ErrorIs(t, tbl.Delete(ctx, "missing"), rowstore.ErrRowNotFound)
		assert.ErrorIs(t, tbl.SetCells(ctx, "missing", map[int]string{0: "x"}), rowstore.ErrRowNotFound)
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		s := rowstore.New(newBackend(t))
		ctx := context.Background()
		bills, err := s.Collection(ctx, "Bills", []string{"Email", "Bills", "Updated"})
		require.NoError(t, err)
		billsX, err := s.Collection(ctx, "BillsX", []string{"Email", "Bills", "Updated"})
		require.NoError(t, err)

		_, err = billsX.Append(ctx, "a@b.com", "[]", "t")
		require.NoError(t, err)

		rows, err := bills.Rows(ctx)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("ReopenKeepsRows", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		header := []string{"Email", "Bills", "Updated"}

		first, err := rowstore.New(b).Collection(ctx, "Bills", header)
		require.NoError(t, err)
		_, err = first.Append(ctx, "a@b.com", "[]", "t")
		require.NoError(t, err)

		second, err := rowstore.New(b).Collection(ctx, "Bills", header)
		require.NoError(t, err)
		rows, err := second.Rows(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func open(t *testing.T, b rowstore.Backend, name string, header ...string) *rowstore.Table {
	t.Helper()
	tbl, err := rowstore.New(b).Collection(context.Background(), name, header)
	require.NoError(t, err)
	return tbl
}
