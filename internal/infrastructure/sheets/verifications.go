package sheets

import (
	"context"
	"time"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

const (
	otpColEmail = iota
	otpColCode
	otpColExpiry
)

// VerificationRepo stores at most one pending code per email.
type VerificationRepo struct {
	t *rowstore.Table
}

func NewVerificationRepo(t *rowstore.Table) *VerificationRepo {
	return &VerificationRepo{t: t}
}

// Issue passes the pending code for email (nil when there is none) to issue
// and, unless issue fails, replaces every stored code for email with the one
// it returns.
func (r *VerificationRepo) Issue(ctx context.Context, email string, issue func(prev *domain.OneTimeCode) (*domain.OneTimeCode, error)) (*domain.OneTimeCode, error) {
	r.t.Lock()
	defer r.t.Unlock()

	var prev *domain.OneTimeCode
	row, ok, err := r.t.Find(ctx, byEmail(email))
	if err != nil {
		return nil, err
	}
	if ok {
		prev = rowToCode(row)
	}

	next, err := issue(prev)
	if err != nil {
		return nil, err
	}
	if _, err := r.t.DeleteWhere(ctx, byEmail(email)); err != nil {
		return nil, err
	}
	if _, err := r.t.Append(ctx, email, next.Code, formatMillis(next.ExpiresAt)); err != nil {
		return nil, err
	}
	return next, nil
}

// Consume deletes the pending code for email once check accepts it. A code
// rejected by check is left untouched.
func (r *VerificationRepo) Consume(ctx context.Context, email string, check func(*domain.OneTimeCode) error) error {
	r.t.Lock()
	defer r.t.Unlock()

	row, ok, err := r.t.Find(ctx, byEmail(email))
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	if err := check(rowToCode(row)); err != nil {
		return err
	}
	return r.t.Delete(ctx, row.ID)
}

// DeleteExpired removes codes whose expiry is before now.
func (r *VerificationRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.t.Lock()
	defer r.t.Unlock()
	return r.t.DeleteWhere(ctx, func(row rowstore.Row) bool {
		return rowToCode(row).Expired(now)
	})
}

func rowToCode(row rowstore.Row) *domain.OneTimeCode {
	return &domain.OneTimeCode{
		Email:     domain.NormalizeEmail(row.Cell(otpColEmail)),
		Code:      row.Cell(otpColCode),
		ExpiresAt: parseMillis(row.Cell(otpColExpiry)),
	}
}
