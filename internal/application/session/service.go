package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/metrics"
	pkgtoken "github.com/go-budget-api/internal/pkg/token"
)

type Service interface {
	// Create mints a token for email and stores it with a fixed expiry.
	Create(ctx context.Context, email string) (string, error)
	// Validate reports whether a stored session for email carries token and
	// has not expired. Expiry is never extended on use.
	Validate(ctx context.Context, email, token string) (bool, error)
	// Authorize is Validate for request handlers: missing credentials are a
	// validation error and a rejected token is domain.ErrAuth.
	Authorize(ctx context.Context, email, token string) error
	// Sweep deletes expired sessions and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	ListByToken(ctx context.Context, token string) ([]*domain.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type service struct {
	repo     sessionStore
	ttl      time.Duration
	clock    func() time.Time
	newToken func() (string, error)
}

type ServiceDeps struct {
	SessionRepo sessionStore
	TTL         time.Duration
	Clock       func() time.Time
	NewToken    func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.SessionRepo,
		ttl:      deps.TTL,
		clock:    deps.Clock,
		newToken: deps.NewToken,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newToken == nil {
		s.newToken = pkgtoken.NewSessionToken
	}
	return s
}

func (s *service) Create(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: email required", domain.ErrValidation)
	}
	token, err := s.newToken()
	if err != nil {
		return "", err
	}
	now := s.clock().UTC()
	sess := &domain.Session{
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.repo.Put(ctx, sess); err != nil {
		return "", err
	}
	metrics.RecordSessionCreated()
	return token, nil
}

func (s *service) Validate(ctx context.Context, email, token string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || token == "" {
		return false, nil
	}
	sessions, err := s.repo.ListByToken(ctx, token)
	if err != nil {
		return false, err
	}
	now := s.clock()
	for _, sess := range sessions {
		if sess.Email == email && sess.Valid(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) Authorize(ctx context.Context, email, token string) error {
	if domain.NormalizeEmail(email) == "" || token == "" {
		return fmt.Errorf("%w: auth required", domain.ErrValidation)
	}
	ok, err := s.Validate(ctx, email, token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: session expired", domain.ErrAuth)
	}
	return nil
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, s.clock())
}
