package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-budget-api/internal/application/budget"
	"github.com/go-budget-api/internal/application/otp"
	"github.com/go-budget-api/internal/application/session"
	"github.com/go-budget-api/internal/domain"
	"github.com/go-budget-api/internal/infrastructure/metrics"
	"github.com/gorilla/schema"
)

// Actions understood by the API.
const (
	ActionPing      = "ping"
	ActionSendOTP   = "sendOTP"
	ActionVerifyOTP = "verifyOTP"
	ActionLoadData  = "loadData"
	ActionLoadBills = "loadBills"
	ActionSaveMonth = "saveMonth"
	ActionSaveBills = "saveBills"
)

const (
	bannerStatus = "SmartBudget API running"
	maxBodyBytes = 1 << 20
	isoMillis    = "2006-01-02T15:04:05.000Z07:00"
)

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// GetParams are the query parameters of GET /.
type GetParams struct {
	Action string `schema:"action"`
	Email  string `schema:"email"`
	OTP    string `schema:"otp"`
	Token  string `schema:"token"`
}

// PostBody is the JSON body of POST /.
type PostBody struct {
	Action string          `json:"action"`
	Email  string          `json:"email"`
	Token  string          `json:"token"`
	Key    string          `json:"key"`
	Data   json.RawMessage `json:"data"`
	Bills  json.RawMessage `json:"bills"`
}

// APIHandler dispatches GET and POST requests on their action field.
type APIHandler struct {
	otp      otp.Service
	sessions session.Service
	budget   budget.Service
	clock    func() time.Time
}

func NewAPIHandler(otpSvc otp.Service, sessionSvc session.Service, budgetSvc budget.Service) *APIHandler {
	return &APIHandler{otp: otpSvc, sessions: sessionSvc, budget: budgetSvc, clock: time.Now}
}

type actionFunc func(ctx context.Context) (map[string]interface{}, error)

func (h *APIHandler) Get(w http.ResponseWriter, r *http.Request) {
	var p GetParams
	if err := queryDecoder.Decode(&p, r.URL.Query()); err != nil {
		writeError(w, "Invalid query: "+err.Error())
		return
	}

	var run actionFunc
	switch p.Action {
	case ActionPing:
		run = func(context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{
				"status": "connected",
				"time":   h.clock().UTC().Format(isoMillis),
			}, nil
		}
	case ActionSendOTP:
		run = func(ctx context.Context) (map[string]interface{}, error) {
			if err := h.otp.Send(ctx, p.Email); err != nil {
				return nil, err
			}
			return map[string]interface{}{"sent": true}, nil
		}
	case ActionVerifyOTP:
		run = func(ctx context.Context) (map[string]interface{}, error) {
			res, err := h.otp.Verify(ctx, p.Email, p.OTP)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"verified": true, "token": res.Token, "email": res.Email}, nil
		}
	case ActionLoadData:
		run = h.authorized(p.Email, p.Token, func(ctx context.Context) (map[string]interface{}, error) {
			months, err := h.budget.LoadMonthly(ctx, p.Email)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"months": months}, nil
		})
	case ActionLoadBills:
		run = h.authorized(p.Email, p.Token, func(ctx context.Context) (map[string]interface{}, error) {
			bills, err := h.budget.LoadBills(ctx, p.Email)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"bills": bills}, nil
		})
	default:
		writeOK(w, map[string]interface{}{"status": bannerStatus})
		return
	}
	h.dispatch(w, r, p.Action, run)
}

func (h *APIHandler) Post(w http.ResponseWriter, r *http.Request) {
	var b PostBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&b); err != nil {
		writeError(w, "Invalid request body")
		return
	}

	var run actionFunc
	switch b.Action {
	case ActionSaveMonth:
		run = h.authorized(b.Email, b.Token, func(ctx context.Context) (map[string]interface{}, error) {
			res, err := h.budget.SaveMonthly(ctx, b.Email, b.Key, b.Data)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"saved": true, "action": res}, nil
		})
	case ActionSaveBills:
		run = h.authorized(b.Email, b.Token, func(ctx context.Context) (map[string]interface{}, error) {
			if err := h.budget.SaveBills(ctx, b.Email, b.Bills); err != nil {
				return nil, err
			}
			return map[string]interface{}{"saved": true}, nil
		})
	default:
		metrics.RecordAction("unknown", false)
		writeError(w, "Unknown action")
		return
	}
	h.dispatch(w, r, b.Action, run)
}

// authorized runs next only when the session for email and token is valid.
func (h *APIHandler) authorized(email, token string, next actionFunc) actionFunc {
	return func(ctx context.Context) (map[string]interface{}, error) {
		if err := h.sessions.Authorize(ctx, email, token); err != nil {
			return nil, err
		}
		return next(ctx)
	}
}

func (h *APIHandler) dispatch(w http.ResponseWriter, r *http.Request, action string, run actionFunc) {
	fields, err := run(r.Context())
	metrics.RecordAction(action, err == nil)
	if err != nil {
		writeError(w, failureMessage(action, err))
		return
	}
	writeOK(w, fields)
}

// failureMessage maps an action error to the message shown to the client.
func failureMessage(action string, err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return detail(err, domain.ErrValidation)
	case errors.Is(err, domain.ErrCooldown):
		return detail(err, domain.ErrCooldown)
	case errors.Is(err, domain.ErrDispatch):
		return "Email send failed: " + strings.TrimPrefix(err.Error(), domain.ErrDispatch.Error()+": ")
	case errors.Is(err, domain.ErrNotFound):
		return "No OTP found. Please request again."
	case errors.Is(err, domain.ErrExpired):
		return "OTP expired. Please request again."
	case errors.Is(err, domain.ErrMismatch):
		return "Wrong OTP. Please try again."
	case errors.Is(err, domain.ErrAuth):
		return "Session expired. Please login again."
	}
	slog.Error("action failed", "action", action, "err", err)
	return action + " error: " + err.Error()
}

// detail returns the text after the sentinel prefix, capitalized.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		msg = sentinel.Error()
	}
	r, size := utf8.DecodeRuneInString(msg)
	return string(unicode.ToUpper(r)) + msg[size:]
}
