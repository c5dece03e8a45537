package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// CrawlSession is the persisted record of one watch-query run.
type CrawlSession struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	QueryID         string          `json:"query_id" db:"query_id"`
	StartedAt       time.Time       `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at" db:"finished_at"`
	Status          SessionStatus   `json:"status" db:"status"`
	ListingsFound   int             `json:"listings_found" db:"listings_found"`
	ListingsNew     int             `json:"listings_new" db:"listings_new"`
	ListingsChanged int             `json:"listings_changed" db:"listings_changed"`
	Notified        int             `json:"notified" db:"notified"`
	StationFailures json.RawMessage `json:"station_failures,omitempty" db:"station_failures"`
}

// SessionSummary is what SaveResults hands back to the caller.
type SessionSummary struct {
	SessionID uuid.UUID `json:"session_id"`
	QueryID   string    `json:"query_id"`
	Saved     int       `json:"saved"`
	New       int       `json:"new"`
	Changed   int       `json:"changed"`
	Unchanged int       `json:"unchanged"`
}

// WatchQuery is a stored search the daemon re-crawls on every tick.
type WatchQuery struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	URL       string     `json:"url" db:"url"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastRunAt *time.Time `json:"last_run_at" db:"last_run_at"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// CrawlLog is one line of the per-session run log kept in SQLite.
type CrawlLog struct {
	ID        int64     `json:"id" db:"id"`
	SessionID *string   `json:"session_id" db:"session_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	QueryID   string    `json:"query_id" db:"query_id"`
}
