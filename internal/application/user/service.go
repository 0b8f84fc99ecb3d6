package user

import (
	"context"
	"fmt"
	"time"

	"github.com/go-budget-api/internal/domain"
)

type Service interface {
	// Touch records an OTP issuance for email in the user registry.
	Touch(ctx context.Context, email string) (*domain.User, error)
}

type userStore interface {
	Touch(ctx context.Context, email string, now time.Time) (*domain.User, error)
}

type service struct {
	repo  userStore
	clock func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Clock    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: deps.UserRepo, clock: clock}
}

func (s *service) Touch(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email required", domain.ErrValidation)
	}
	return s.repo.Touch(ctx, email, s.clock().UTC())
}
