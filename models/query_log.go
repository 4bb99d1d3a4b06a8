package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueryStatus represents the outcome of one answer resolution
type QueryStatus string

const (
	QueryStatusAnswered    QueryStatus = "answered"
	QueryStatusNoAnswer    QueryStatus = "no_answer"
	QueryStatusConfigError QueryStatus = "config_error"
	QueryStatusBackendErr  QueryStatus = "backend_error"
)

// BackendAttempt represents one backend tried while resolving a query
type BackendAttempt struct {
	Backend string `json:"backend"`
	Outcome string `json:"outcome"` // "answered", "empty", "error", "skipped"
	Detail  string `json:"detail,omitempty"`
}

// BackendAttempts represents the ordered attempts of one resolution
type BackendAttempts []BackendAttempt

// Value implements driver.Valuer for JSONB
func (b BackendAttempts) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB
func (b *BackendAttempts) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	if len(raw) == 0 {
		*b = make(BackendAttempts, 0)
		return nil
	}
	return json.Unmarshal(raw, b)
}

// QueryLog represents an audit record of a resolved query
type QueryLog struct {
	ID           uuid.UUID       `json:"id"`
	Username     string          `json:"username"`
	Query        string          `json:"query"`
	Mode         string          `json:"mode"`
	Backend      string          `json:"backend"`
	Strict       bool            `json:"strict"`
	Weak         bool            `json:"weak"`
	Status       QueryStatus     `json:"status"`
	Attempts     BackendAttempts `json:"attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
}
