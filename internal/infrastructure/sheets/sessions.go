package sheets

import (
	"context"
	"time"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

const (
	sessionColEmail = iota
	sessionColToken
	sessionColExpiry
	sessionColCreated
)

type SessionRepo struct {
	t *rowstore.Table
}

func NewSessionRepo(t *rowstore.Table) *SessionRepo {
	return &SessionRepo{t: t}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	r.t.Lock()
	defer r.t.Unlock()
	_, err := r.t.Append(ctx, s.Email, s.Token, formatMillis(s.ExpiresAt), formatTime(s.CreatedAt))
	return err
}

// ListByToken returns every stored session carrying token, in stored order.
func (r *SessionRepo) ListByToken(ctx context.Context, token string) ([]*domain.Session, error) {
	rows, err := r.t.Rows(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Session
	for _, row := range rows {
		if row.Cell(sessionColToken) == token {
			out = append(out, rowToSession(row))
		}
	}
	return out, nil
}

// DeleteExpired removes sessions that are no longer valid at now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.t.Lock()
	defer r.t.Unlock()
	return r.t.DeleteWhere(ctx, func(row rowstore.Row) bool {
		return !rowToSession(row).Valid(now)
	})
}

// Session emails are compared exactly; they are normalized on write.
func rowToSession(row rowstore.Row) *domain.Session {
	return &domain.Session{
		Email:     row.Cell(sessionColEmail),
		Token:     row.Cell(sessionColToken),
		ExpiresAt: parseMillis(row.Cell(sessionColExpiry)),
		CreatedAt: parseTime(row.Cell(sessionColCreated)),
	}
}
