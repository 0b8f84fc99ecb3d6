package sheets

import (
	"context"
	"encoding/json"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

const (
	budgetColEmail = iota
	budgetColMonthKey
	budgetColData
	budgetColUpdated
)

// BudgetRepo keeps one row per (email, month key).
type BudgetRepo struct {
	t *rowstore.Table
}

func NewBudgetRepo(t *rowstore.Table) *BudgetRepo {
	return &BudgetRepo{t: t}
}

// Upsert overwrites the payload of the first row for (email, month key) or
// appends a new row when there is none.
func (r *BudgetRepo) Upsert(ctx context.Context, doc *domain.MonthlyDocument) (domain.UpsertResult, error) {
	r.t.Lock()
	defer r.t.Unlock()

	row, ok, err := r.t.Find(ctx, func(row rowstore.Row) bool {
		return byEmail(doc.Email)(row) && row.Cell(budgetColMonthKey) == doc.MonthKey
	})
	if err != nil {
		return "", err
	}
	if ok {
		err := r.t.SetCells(ctx, row.ID, map[int]string{
			budgetColData:    string(doc.Payload),
			budgetColUpdated: formatTime(doc.UpdatedAt),
		})
		if err != nil {
			return "", err
		}
		return domain.UpsertUpdated, nil
	}
	if _, err := r.t.Append(ctx, doc.Email, doc.MonthKey, string(doc.Payload), formatTime(doc.UpdatedAt)); err != nil {
		return "", err
	}
	return domain.UpsertCreated, nil
}

// ListByEmail returns the documents stored for email in stored order. Rows
// without a month key are skipped; payloads are returned unparsed.
func (r *BudgetRepo) ListByEmail(ctx context.Context, email string) ([]*domain.MonthlyDocument, error) {
	rows, err := r.t.Rows(ctx)
	if err != nil {
		return nil, err
	}
	match := byEmail(email)
	var out []*domain.MonthlyDocument
	for _, row := range rows {
		if !match(row) || row.Cell(budgetColMonthKey) == "" {
			continue
		}
		out = append(out, &domain.MonthlyDocument{
			Email:     email,
			MonthKey:  row.Cell(budgetColMonthKey),
			Payload:   json.RawMessage(row.Cell(budgetColData)),
			UpdatedAt: parseTime(row.Cell(budgetColUpdated)),
		})
	}
	return out, nil
}
