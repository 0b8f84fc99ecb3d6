package http

import (
	"github.com/go-budget-api/internal/application/budget"
	"github.com/go-budget-api/internal/application/otp"
	"github.com/go-budget-api/internal/application/session"
)

// Deps holds the application services the router dispatches to.
type Deps struct {
	OTP      otp.Service
	Sessions session.Service
	Budget   budget.Service
}
