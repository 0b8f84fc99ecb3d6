package sheets

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

const (
	userColEmail = iota
	userColFirstLogin
	userColLastLogin
	userColLoginCount
)

type UserRepo struct {
	t *rowstore.Table
}

func NewUserRepo(t *rowstore.Table) *UserRepo {
	return &UserRepo{t: t}
}

// Touch records a login at now for email: the first matching row gets its
// last login and count bumped, otherwise a new row with count 1 is appended.
func (r *UserRepo) Touch(ctx context.Context, email string, now time.Time) (*domain.User, error) {
	r.t.Lock()
	defer r.t.Unlock()

	row, ok, err := r.t.Find(ctx, byEmail(email))
	if err != nil {
		return nil, err
	}
	if ok {
		u := rowToUser(row)
		u.LastLoginAt = now.UTC()
		u.LoginCount++
		err := r.t.SetCells(ctx, row.ID, map[int]string{
			userColLastLogin:  formatTime(now),
			userColLoginCount: strconv.Itoa(u.LoginCount),
		})
		if err != nil {
			return nil, err
		}
		return u, nil
	}

	u := &domain.User{Email: email, FirstLoginAt: now.UTC(), LastLoginAt: now.UTC(), LoginCount: 1}
	if _, err := r.t.Append(ctx, email, formatTime(now), formatTime(now), "1"); err != nil {
		return nil, err
	}
	return u, nil
}

func rowToUser(row rowstore.Row) *domain.User {
	count, _ := strconv.Atoi(strings.TrimSpace(row.Cell(userColLoginCount)))
	return &domain.User{
		Email:        domain.NormalizeEmail(row.Cell(userColEmail)),
		FirstLoginAt: parseTime(row.Cell(userColFirstLogin)),
		LastLoginAt:  parseTime(row.Cell(userColLastLogin)),
		LoginCount:   count,
	}
}
