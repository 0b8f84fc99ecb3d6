// Package sheets maps domain entities onto rowstore collections. Each
// collection keeps the column layout of its header row; repositories take the
// table lock around every scan that is followed by a write.
package sheets

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-budget-api/internal/config"
	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

var (
	userHeader    = []string{"Email", "First Login", "Last Login", "Login Count"}
	budgetHeader  = []string{"Email", "MonthKey", "Data", "Updated"}
	otpHeader     = []string{"Email", "OTP", "Expiry"}
	sessionHeader = []string{"Email", "Token", "Expiry", "Created"}
	billsHeader   = []string{"Email", "Bills", "Updated"}
)

// Repos groups the repository for every collection.
type Repos struct {
	Users         *UserRepo
	Budgets       *BudgetRepo
	Verifications *VerificationRepo
	Sessions      *SessionRepo
	Bills         *BillRepo
}

// Open creates any missing collection with its header row and returns the
// repositories bound to them.
func Open(ctx context.Context, store *rowstore.Store, names config.Sheets) (*Repos, error) {
	// Same order as config.Sheets.All.
	headers := [][]string{userHeader, budgetHeader, otpHeader, sessionHeader, billsHeader}
	tables := make([]*rowstore.Table, len(headers))
	for i, name := range names.All() {
		t, err := store.Collection(ctx, name, headers[i])
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	return &Repos{
		Users:         NewUserRepo(tables[0]),
		Budgets:       NewBudgetRepo(tables[1]),
		Verifications: NewVerificationRepo(tables[2]),
		Sessions:      NewSessionRepo(tables[3]),
		Bills:         NewBillRepo(tables[4]),
	}, nil
}

// byEmail matches rows whose first column holds email. Stored values are
// normalized before comparing so rows written by hand still match.
func byEmail(email string) func(rowstore.Row) bool {
	return func(r rowstore.Row) bool {
		return domain.NormalizeEmail(r.Cell(0)) == email
	}
}

// Expiry columns hold Unix milliseconds.
func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// parseMillis returns the zero time for values that are not a number.
func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
