package db

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const (
	SyncStatusPending    = "PENDING"
	SyncStatusInProgress = "IN_PROGRESS"
	SyncStatusCompleted  = "COMPLETED"
	SyncStatusFailed     = "FAILED"

	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"

	RunTypeBackfill    = "BACKFILL"
	RunTypeIncremental = "INCREMENTAL"
	RunTypeManual      = "MANUAL"
)

type Fund struct {
	SchemeCode string
	SchemeName string
	Amc        string
	Category   string
	SchemeType string
	UpdatedAt  pgtype.Timestamp
}

type NavHistory struct {
	SchemeCode string
	NavDate    pgtype.Date
	NavValue   decimal.Decimal
}

type SyncRun struct {
	RunID        pgtype.UUID
	RunType      string
	Status       string
	StartedAt    pgtype.Timestamp
	FinishedAt   pgtype.Timestamp
	ErrorSummary pgtype.Text
}

type SyncState struct {
	SchemeCode     string
	Status         string
	LastSyncedDate pgtype.Date
	RetryCount     int32
	LastError      pgtype.Text
	LastAttemptAt  pgtype.Timestamp
}

type RateLimiterState struct {
	WindowType   string
	WindowStart  pgtype.Timestamp
	RequestCount int32
}
