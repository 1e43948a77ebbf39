package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertProcessingError = `-- name: InsertProcessingError :exec
INSERT INTO processing_errors (id, session_id, sheet_name, row_index, error_message, error_type, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertProcessingErrorParams struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	SheetName    pgtype.Text
	RowIndex     pgtype.Int4
	ErrorMessage string
	ErrorType    string
	CreatedAt    time.Time
}

func (q *Queries) InsertProcessingError(ctx context.Context, arg InsertProcessingErrorParams) error {
	_, err := q.db.Exec(ctx, insertProcessingError,
		arg.ID,
		arg.SessionID,
		arg.SheetName,
		arg.RowIndex,
		arg.ErrorMessage,
		arg.ErrorType,
		arg.CreatedAt,
	)
	return err
}

const listProcessingErrors = `-- name: ListProcessingErrors :many
SELECT id, session_id, sheet_name, row_index, error_message, error_type, created_at
FROM processing_errors
WHERE session_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListProcessingErrors(ctx context.Context, sessionID uuid.UUID) ([]ProcessingError, error) {
	rows, err := q.db.Query(ctx, listProcessingErrors, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProcessingError
	for rows.Next() {
		var i ProcessingError
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.SheetName,
			&i.RowIndex,
			&i.ErrorMessage,
			&i.ErrorType,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const purgeProcessingErrors = `-- name: PurgeProcessingErrors :execrows
DELETE FROM processing_errors WHERE created_at < $1
`

func (q *Queries) PurgeProcessingErrors(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, purgeProcessingErrors, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
