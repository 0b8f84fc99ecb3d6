package otp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/go-budget-api/internal/infrastructure/sheets"
	"github.com/go-budget-api/internal/infrastructure/smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(msg smtp.Message) error {
	return m.Called(msg).Error(0)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Create(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Touch(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      Service
	codes    *sheets.VerificationRepo
	mailer   *mockMailer
	sessions *mockSessions
	users    *mockUsers
	now      time.Time
	nextCode string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := rowstore.New(rowstore.NewMemoryBackend())
	tbl, err := store.Collection(context.Background(), "OTPStore", []string{"Email", "OTP", "Expiry"})
	require.NoError(t, err)

	f := &fixture{
		codes:    sheets.NewVerificationRepo(tbl),
		mailer:   &mockMailer{},
		sessions: &mockSessions{},
		users:    &mockUsers{},
		now:      t0,
		nextCode: "123456",
	}
	f.svc = NewService(ServiceDeps{
		CodeRepo:       f.codes,
		SessionService: f.sessions,
		UserService:    f.users,
		Mailer:         f.mailer,
		TTL:            10 * time.Minute,
		Cooldown:       60 * time.Second,
		Clock:          func() time.Time { return f.now },
		NewCode:        func() (string, error) { return f.nextCode, nil },
	})
	return f
}

func (f *fixture) mailOK() {
	f.mailer.On("SendEmail", mock.Anything).Return(nil)
	f.users.On("Touch", mock.Anything, mock.Anything).Return(&domain.User{}, nil)
}

var errKeep = errors.New("keep")

// stored reads the pending code through a refusing Consume, leaving it in place.
func (f *fixture) stored(t *testing.T, email string) *domain.OneTimeCode {
	t.Helper()
	var got *domain.OneTimeCode
	err := f.codes.Consume(context.Background(), email, func(c *domain.OneTimeCode) error {
		got = c
		return errKeep
	})
	require.ErrorIs(t, err, errKeep)
	return got
}

// --- Send ---

func TestSend_StoresCodeAndMails(t *testing.T) {
	f := newFixture(t)
	f.mailOK()

	require.NoError(t, f.svc.Send(context.Background(), " A@B.com"))

	c := f.stored(t, "a@b.com")
	assert.Equal(t, "123456", c.Code)
	assert.Equal(t, t0.Add(10*time.Minute), c.ExpiresAt)

	f.mailer.AssertCalled(t, "SendEmail", mock.MatchedBy(func(m smtp.Message) bool {
		return m.To == "a@b.com" &&
			m.Subject == "SmartBudget Pro — Your OTP Code" &&
			m.Text == "Your OTP is: 123456\nValid for 10 minutes." &&
			strings.Contains(m.HTML, ">123456</div>")
	}))
	f.users.AssertCalled(t, "Touch", mock.Anything, "a@b.com")
}

func TestSend_InvalidEmail(t *testing.T) {
	for _, email := range []string{"", "plain", "a@b", "a b@c.com", "@b.com"} {
		f := newFixture(t)

		err := f.svc.Send(context.Background(), email)

		assert.ErrorIs(t, err, domain.ErrValidation, "email: %q", email)
		f.mailer.AssertNotCalled(t, "SendEmail", mock.Anything)
	}
}

func TestSend_NormalizesBeforeSyntaxCheck(t *testing.T) {
	for _, email := range []string{" a@b.com", "a@b.com\t", "  A@B.COM  "} {
		f := newFixture(t)
		f.mailOK()

		require.NoError(t, f.svc.Send(context.Background(), email), "email: %q", email)

		assert.Equal(t, "a@b.com", f.stored(t, "a@b.com").Email)
		f.mailer.AssertCalled(t, "SendEmail", mock.MatchedBy(func(m smtp.Message) bool { return m.To == "a@b.com" }))
	}

	f := newFixture(t)
	err := f.svc.Send(context.Background(), " a @b.com")
	assert.ErrorIs(t, err, domain.ErrValidation, "inner whitespace is still rejected")
}

func TestSend_CooldownWindow(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))

	f.now = t0.Add(60 * time.Second)
	f.nextCode = "222222"
	err := f.svc.Send(ctx, "a@b.com")
	require.ErrorIs(t, err, domain.ErrCooldown)
	assert.Contains(t, err.Error(), "please wait 60 seconds before requesting OTP again")
	assert.Equal(t, "123456", f.stored(t, "a@b.com").Code, "rejected send keeps the code")

	f.now = t0.Add(60*time.Second + time.Millisecond)
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	c := f.stored(t, "a@b.com")
	assert.Equal(t, "222222", c.Code)
	assert.Equal(t, f.now.Add(10*time.Minute), c.ExpiresAt)
	f.mailer.AssertNumberOfCalls(t, "SendEmail", 2)
}

func TestSend_CooldownIsPerEmail(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	assert.NoError(t, f.svc.Send(ctx, "c@d.com"))
}

func TestSend_DispatchFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	smtpErr := errors.New("connection refused")
	f.mailer.On("SendEmail", mock.Anything).Return(smtpErr)

	err := f.svc.Send(context.Background(), "a@b.com")

	require.ErrorIs(t, err, domain.ErrDispatch)
	assert.ErrorIs(t, err, smtpErr)
	assert.Equal(t, "123456", f.stored(t, "a@b.com").Code)
	f.users.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything)
}

func TestSend_TouchFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything).Return(nil)
	f.users.On("Touch", mock.Anything, "a@b.com").Return(nil, errors.New("registry down"))

	assert.NoError(t, f.svc.Send(context.Background(), "a@b.com"))
}

func TestNewCode_InRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := newCode()
		require.NoError(t, err)
		require.Len(t, c, 6)
		assert.GreaterOrEqual(t, c, "100000")
		assert.LessOrEqual(t, c, "999999")
	}
}

// --- Verify ---

func TestVerify_NoPendingCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), "a@b.com", "123456")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerify_MissingInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), "", "123456")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.Verify(context.Background(), "a@b.com", "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVerify_SingleUse(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	f.sessions.On("Create", mock.Anything, "a@b.com").Return("tok", nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))

	res, err := f.svc.Verify(ctx, "A@b.com", " 123456 ")
	require.NoError(t, err)
	assert.Equal(t, &VerifyResult{Email: "a@b.com", Token: "tok"}, res)

	_, err = f.svc.Verify(ctx, "a@b.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.sessions.AssertNumberOfCalls(t, "Create", 1)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	f.sessions.On("Create", mock.Anything, "a@b.com").Return("tok", nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))

	f.now = t0.Add(10*time.Minute + time.Millisecond)
	_, err := f.svc.Verify(ctx, "a@b.com", "123456")
	assert.ErrorIs(t, err, domain.ErrExpired)

	f.now = t0.Add(10 * time.Minute)
	_, err = f.svc.Verify(ctx, "a@b.com", "123456")
	assert.NoError(t, err)
}

func TestVerify_SessionErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	boom := errors.New("boom")
	f.sessions.On("Create", mock.Anything, "a@b.com").Return("", boom)
	ctx := context.Background()
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))

	_, err := f.svc.Verify(ctx, "a@b.com", "123456")

	assert.ErrorIs(t, err, boom)
}

func TestScenario_MismatchExpiredResendVerify(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	f.sessions.On("Create", mock.Anything, "a@b.com").Return("tok-1", nil)
	ctx := context.Background()

	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	assert.Equal(t, t0.Add(600000*time.Millisecond), f.stored(t, "a@b.com").ExpiresAt)

	f.now = t0.Add(10 * time.Millisecond)
	_, err := f.svc.Verify(ctx, "a@b.com", "654321")
	require.ErrorIs(t, err, domain.ErrMismatch)
	assert.Equal(t, "123456", f.stored(t, "a@b.com").Code, "wrong code leaves the pending code")

	f.now = t0.Add(700000 * time.Millisecond)
	_, err = f.svc.Verify(ctx, "a@b.com", "123456")
	require.ErrorIs(t, err, domain.ErrExpired)

	f.nextCode = "777777"
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.Verify(ctx, "a@b.com", "123456")
	require.ErrorIs(t, err, domain.ErrMismatch, "previous code is invalidated")

	res, err := f.svc.Verify(ctx, "a@b.com", "777777")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", res.Email)
	assert.Equal(t, "tok-1", res.Token)
}

// --- Sweep ---

func TestSweep_RemovesExpiredCodes(t *testing.T) {
	f := newFixture(t)
	f.mailOK()
	ctx := context.Background()
	require.NoError(t, f.svc.Send(ctx, "a@b.com"))
	f.now = t0.Add(5 * time.Minute)
	require.NoError(t, f.svc.Send(ctx, "c@d.com"))

	f.now = t0.Add(11 * time.Minute)
	n, err := f.svc.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	err = f.codes.Consume(ctx, "a@b.com", func(*domain.OneTimeCode) error { return errKeep })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
