package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Querier interface {
	CompleteImportSession(ctx context.Context, arg CompleteImportSessionParams) error
	CountSearchRows(ctx context.Context, arg CountSearchRowsParams) (int64, error)
	CountSessions(ctx context.Context) (int64, error)
	DeleteSession(ctx context.Context, id uuid.UUID) (int64, error)
	GetSession(ctx context.Context, id uuid.UUID) (ImportSession, error)
	GetSessionByFingerprint(ctx context.Context, fingerprint string) (ImportSession, error)
	GetSheet(ctx context.Context, id uuid.UUID) (Sheet, error)
	InsertExcludedSheet(ctx context.Context, arg InsertExcludedSheetParams) error
	InsertImportSession(ctx context.Context, arg InsertImportSessionParams) error
	InsertProcessingError(ctx context.Context, arg InsertProcessingErrorParams) error
	InsertSheet(ctx context.Context, arg InsertSheetParams) error
	InsertSheetRows(ctx context.Context, arg []InsertSheetRowsParams) (int64, error)
	ListExcludedSheets(ctx context.Context, sessionID uuid.UUID) ([]ExcludedSheet, error)
	ListProcessingErrors(ctx context.Context, sessionID uuid.UUID) ([]ProcessingError, error)
	ListSessions(ctx context.Context, arg ListSessionsParams) ([]ImportSession, error)
	ListSheetRows(ctx context.Context, sheetID uuid.UUID) ([]SheetRow, error)
	ListSheetsBySession(ctx context.Context, sessionID uuid.UUID) ([]Sheet, error)
	PurgeProcessingErrors(ctx context.Context, before time.Time) (int64, error)
	SearchRows(ctx context.Context, arg SearchRowsParams) ([]SearchRow, error)
}

var _ Querier = (*Queries)(nil)
