package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// SessionStatus is the lifecycle state of an import session.
type SessionStatus string

const (
	StatusProcessing SessionStatus = "Processing"
	StatusCompleted  SessionStatus = "Completed"
	StatusFailed     SessionStatus = "Failed"
)

type ImportSession struct {
	ID              uuid.UUID
	FileName        string
	Fingerprint     pgtype.Text
	TotalSheets     int32
	ProcessedSheets int32
	ExcludedSheets  int32
	TotalRows       int32
	ImportedAt      time.Time
	ImportedBy      pgtype.Text
	Status          SessionStatus
	ProcessingMs    int64
}

type Sheet struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	SheetName   string
	SheetIndex  int32
	RowCount    int32
	ColumnCount int32
	Headers     string
}

type SheetRow struct {
	ID       uuid.UUID
	SheetID  uuid.UUID
	RowIndex int32
	RowData  string
	RowHash  string
}

type ExcludedSheet struct {
	ID              uuid.UUID
	SessionID       uuid.UUID
	SheetName       string
	ExclusionReason pgtype.Text
}

type ProcessingError struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	SheetName    pgtype.Text
	RowIndex     pgtype.Int4
	ErrorMessage string
	ErrorType    string
	CreatedAt    time.Time
}

// SearchRow is a matching sheet row joined with its sheet and session.
type SearchRow struct {
	RowID      uuid.UUID
	RowIndex   int32
	RowData    string
	SheetID    uuid.UUID
	SheetName  string
	SheetIndex int32
	SessionID  uuid.UUID
	FileName   string
	ImportedAt time.Time
}
