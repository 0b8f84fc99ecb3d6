package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/metrics"
	"github.com/go-budget-api/internal/infrastructure/smtp"
	"github.com/go-budget-api/internal/pkg/validate"
)

// VerifyResult is returned by a successful Verify.
type VerifyResult struct {
	Email string
	Token string
}

type Service interface {
	// Send issues a new code for email and mails it. A dispatch failure leaves
	// the stored code in place.
	Send(ctx context.Context, email string) error
	// Verify consumes the pending code for email and opens a session.
	Verify(ctx context.Context, email, code string) (*VerifyResult, error)
	// Sweep deletes expired codes and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type codeStore interface {
	Issue(ctx context.Context, email string, issue func(prev *domain.OneTimeCode) (*domain.OneTimeCode, error)) (*domain.OneTimeCode, error)
	Consume(ctx context.Context, email string, check func(*domain.OneTimeCode) error) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type sessionCreator interface {
	Create(ctx context.Context, email string) (string, error)
}

type userToucher interface {
	Touch(ctx context.Context, email string) (*domain.User, error)
}

type service struct {
	codes    codeStore
	sessions sessionCreator
	users    userToucher
	mailer   smtp.Mailer
	ttl      time.Duration
	cooldown time.Duration
	clock    func() time.Time
	newCode  func() (string, error)
}

type ServiceDeps struct {
	CodeRepo       codeStore
	SessionService sessionCreator
	UserService    userToucher
	Mailer         smtp.Mailer
	TTL            time.Duration
	Cooldown       time.Duration
	Clock          func() time.Time
	NewCode        func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		codes:    deps.CodeRepo,
		sessions: deps.SessionService,
		users:    deps.UserService,
		mailer:   deps.Mailer,
		ttl:      deps.TTL,
		cooldown: deps.Cooldown,
		clock:    deps.Clock,
		newCode:  deps.NewCode,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newCode == nil {
		s.newCode = newCode
	}
	return s
}

func (s *service) Send(ctx context.Context, email string) error {
	// Surrounding whitespace and case are dropped before the syntax check.
	email = domain.NormalizeEmail(email)
	if !validate.Mailbox(email) {
		return fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}

	now := s.clock().UTC()
	issued, err := s.codes.Issue(ctx, email, func(prev *domain.OneTimeCode) (*domain.OneTimeCode, error) {
		// Issuance time is not stored; it is expiry minus TTL.
		if prev != nil && now.Sub(prev.ExpiresAt.Add(-s.ttl)) <= s.cooldown {
			return nil, fmt.Errorf("%w: please wait %d seconds before requesting OTP again",
				domain.ErrCooldown, int(s.cooldown/time.Second))
		}
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		return &domain.OneTimeCode{Email: email, Code: code, ExpiresAt: now.Add(s.ttl)}, nil
	})
	if err != nil {
		return err
	}

	msg, err := otpMessage(email, issued.Code, s.ttl)
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmail(msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	metrics.RecordOTPIssued()

	if _, err := s.users.Touch(ctx, email); err != nil {
		slog.Warn("user registry touch failed", "email", email, "err", err)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and OTP required", domain.ErrValidation)
	}

	now := s.clock()
	err := s.codes.Consume(ctx, email, func(c *domain.OneTimeCode) error {
		if c.Expired(now) {
			return fmt.Errorf("%w: otp expired", domain.ErrExpired)
		}
		if c.Code != code {
			return fmt.Errorf("%w: wrong otp", domain.ErrMismatch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Create(ctx, email)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Email: email, Token: token}, nil
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	return s.codes.DeleteExpired(ctx, s.clock())
}

// newCode returns a uniformly random code in 100000–999999.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
