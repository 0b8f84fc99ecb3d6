package domain

import (
	"encoding/json"
	"time"
)

// MonthlyDocument is a budget snapshot keyed by (Email, MonthKey).
type MonthlyDocument struct {
	Email     string          `json:"email"`
	MonthKey  string          `json:"month_key"`
	Payload   json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated"`
}

// BillsDocument is the single bill list stored per email.
type BillsDocument struct {
	Email     string          `json:"email"`
	Payload   json.RawMessage `json:"bills"`
	UpdatedAt time.Time       `json:"updated"`
}

// UpsertResult reports whether an upsert overwrote a row or appended one.
type UpsertResult string

const (
	UpsertUpdated UpsertResult = "updated"
	UpsertCreated UpsertResult = "created"
)
