package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sessionColumns = `id, file_name, fingerprint, total_sheets, processed_sheets, excluded_sheets,
       total_rows, imported_at, imported_by, status, processing_ms`

func scanSession(row interface{ Scan(...any) error }) (ImportSession, error) {
	var i ImportSession
	err := row.Scan(
		&i.ID,
		&i.FileName,
		&i.Fingerprint,
		&i.TotalSheets,
		&i.ProcessedSheets,
		&i.ExcludedSheets,
		&i.TotalRows,
		&i.ImportedAt,
		&i.ImportedBy,
		&i.Status,
		&i.ProcessingMs,
	)
	return i, err
}

const insertImportSession = `-- name: InsertImportSession :exec
INSERT INTO import_sessions (
    id, file_name, fingerprint, total_sheets, processed_sheets, excluded_sheets,
    total_rows, imported_at, imported_by, status, processing_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
`

type InsertImportSessionParams struct {
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
}

func (q *Queries) InsertImportSession(ctx context.Context, arg InsertImportSessionParams) error {
	_, err := q.db.Exec(ctx, insertImportSession,
		arg.ID,
		arg.FileName,
		arg.Fingerprint,
		arg.TotalSheets,
		arg.ProcessedSheets,
		arg.ExcludedSheets,
		arg.TotalRows,
		arg.ImportedAt,
		arg.ImportedBy,
		arg.Status,
	)
	if IsUniqueViolation(err, fingerprintUniqueKey) {
		return ErrDuplicateFingerprint
	}
	return err
}

const completeImportSession = `-- name: CompleteImportSession :exec
UPDATE import_sessions
SET status = $2, processing_ms = $3
WHERE id = $1
`

type CompleteImportSessionParams struct {
	ID           uuid.UUID
	Status       SessionStatus
	ProcessingMs int64
}

func (q *Queries) CompleteImportSession(ctx context.Context, arg CompleteImportSessionParams) error {
	tag, err := q.db.Exec(ctx, completeImportSession, arg.ID, arg.Status, arg.ProcessingMs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const getSessionByFingerprint = `-- name: GetSessionByFingerprint :one
SELECT ` + sessionColumns + `
FROM import_sessions
WHERE fingerprint = $1
LIMIT 1
`

func (q *Queries) GetSessionByFingerprint(ctx context.Context, fingerprint string) (ImportSession, error) {
	i, err := scanSession(q.db.QueryRow(ctx, getSessionByFingerprint, fingerprint))
	return i, notFound(err)
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + `
FROM import_sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (ImportSession, error) {
	i, err := scanSession(q.db.QueryRow(ctx, getSession, id))
	return i, notFound(err)
}

const countSessions = `-- name: CountSessions :one
SELECT COUNT(*) FROM import_sessions
`

func (q *Queries) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countSessions).Scan(&count)
	return count, err
}

const listSessions = `-- name: ListSessions :many
SELECT ` + sessionColumns + `
FROM import_sessions
ORDER BY imported_at DESC, id DESC
LIMIT $1 OFFSET $2
`

type ListSessionsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListSessions(ctx context.Context, arg ListSessionsParams) ([]ImportSession, error) {
	rows, err := q.db.Query(ctx, listSessions, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportSession
	for rows.Next() {
		i, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSession = `-- name: DeleteSession :execrows
DELETE FROM import_sessions WHERE id = $1
`

func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSession, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
