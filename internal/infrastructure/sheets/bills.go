package sheets

import (
	"context"
	"encoding/json"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

const (
	billsColEmail = iota
	billsColPayload
	billsColUpdated
)

// BillRepo keeps one bill list row per email.
type BillRepo struct {
	t *rowstore.Table
}

func NewBillRepo(t *rowstore.Table) *BillRepo {
	return &BillRepo{t: t}
}

func (r *BillRepo) Upsert(ctx context.Context, doc *domain.BillsDocument) (domain.UpsertResult, error) {
	r.t.Lock()
	defer r.t.Unlock()

	row, ok, err := r.t.Find(ctx, byEmail(doc.Email))
	if err != nil {
		return "", err
	}
	if ok {
		err := r.t.SetCells(ctx, row.ID, map[int]string{
			billsColPayload: string(doc.Payload),
			billsColUpdated: formatTime(doc.UpdatedAt),
		})
		if err != nil {
			return "", err
		}
		return domain.UpsertUpdated, nil
	}
	if _, err := r.t.Append(ctx, doc.Email, string(doc.Payload), formatTime(doc.UpdatedAt)); err != nil {
		return "", err
	}
	return domain.UpsertCreated, nil
}

// Get returns the first bill list stored for email.
func (r *BillRepo) Get(ctx context.Context, email string) (*domain.BillsDocument, error) {
	row, ok, err := r.t.Find(ctx, byEmail(email))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.BillsDocument{
		Email:     email,
		Payload:   json.RawMessage(row.Cell(billsColPayload)),
		UpdatedAt: parseTime(row.Cell(billsColUpdated)),
	}, nil
}
