package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-budget-api/internal/domain"
)

var emptyList = json.RawMessage("[]")

type Service interface {
	// LoadMonthly maps month key to payload for every month stored for email.
	LoadMonthly(ctx context.Context, email string) (map[string]json.RawMessage, error)
	SaveMonthly(ctx context.Context, email, monthKey string, payload json.RawMessage) (domain.UpsertResult, error)
	// LoadBills returns the bill list for email, or an empty list.
	LoadBills(ctx context.Context, email string) (json.RawMessage, error)
	SaveBills(ctx context.Context, email string, payload json.RawMessage) error
}

type monthlyStore interface {
	Upsert(ctx context.Context, doc *domain.MonthlyDocument) (domain.UpsertResult, error)
	ListByEmail(ctx context.Context, email string) ([]*domain.MonthlyDocument, error)
}

type billStore interface {
	Upsert(ctx context.Context, doc *domain.BillsDocument) (domain.UpsertResult, error)
	Get(ctx context.Context, email string) (*domain.BillsDocument, error)
}

type service struct {
	months monthlyStore
	bills  billStore
	clock  func() time.Time
}

type ServiceDeps struct {
	BudgetRepo monthlyStore
	BillRepo   billStore
	Clock      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{months: deps.BudgetRepo, bills: deps.BillRepo, clock: clock}
}

func (s *service) LoadMonthly(ctx context.Context, email string) (map[string]json.RawMessage, error) {
	docs, err := s.months.ListByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	months := make(map[string]json.RawMessage, len(docs))
	for _, d := range docs {
		// Unparsable payloads are skipped rather than reported.
		if !json.Valid(d.Payload) {
			continue
		}
		months[d.MonthKey] = d.Payload
	}
	return months, nil
}

func (s *service) SaveMonthly(ctx context.Context, email, monthKey string, payload json.RawMessage) (domain.UpsertResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || monthKey == "" || falsy(payload) {
		return "", fmt.Errorf("%w: missing fields", domain.ErrValidation)
	}
	data, err := compact(payload)
	if err != nil {
		return "", err
	}
	return s.months.Upsert(ctx, &domain.MonthlyDocument{
		Email:     email,
		MonthKey:  monthKey,
		Payload:   data,
		UpdatedAt: s.clock().UTC(),
	})
}

func (s *service) LoadBills(ctx context.Context, email string) (json.RawMessage, error) {
	doc, err := s.bills.Get(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return emptyList, nil
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(doc.Payload) {
		return emptyList, nil
	}
	return doc.Payload, nil
}

// SaveBills stores an absent payload as an empty list.
func (s *service) SaveBills(ctx context.Context, email string, payload json.RawMessage) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: auth required", domain.ErrValidation)
	}
	data := emptyList
	if !missing(payload) {
		var err error
		if data, err = compact(payload); err != nil {
			return err
		}
	}
	_, err := s.bills.Upsert(ctx, &domain.BillsDocument{
		Email:     email,
		Payload:   data,
		UpdatedAt: s.clock().UTC(),
	})
	return err
}

func missing(payload json.RawMessage) bool {
	p := bytes.TrimSpace(payload)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

// falsy reports payloads that count as no data for a month: missing ones
// plus false, "" and numeric zero. Empty objects and lists are data.
func falsy(payload json.RawMessage) bool {
	p := bytes.TrimSpace(payload)
	if missing(p) {
		return true
	}
	switch string(p) {
	case "false", `""`:
		return true
	}
	if p[0] == '-' || (p[0] >= '0' && p[0] <= '9') {
		f, err := strconv.ParseFloat(string(p), 64)
		return err == nil && f == 0
	}
	return false
}

func compact(payload json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return nil, fmt.Errorf("%w: data is not valid JSON", domain.ErrValidation)
	}
	return buf.Bytes(), nil
}
