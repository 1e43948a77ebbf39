package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const insertSheet = `-- name: InsertSheet :exec
INSERT INTO sheets (id, session_id, sheet_name, sheet_index, row_count, column_count, headers)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertSheetParams struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	SheetName   string
	SheetIndex  int32
	RowCount    int32
	ColumnCount int32
	Headers     string
}

func (q *Queries) InsertSheet(ctx context.Context, arg InsertSheetParams) error {
	_, err := q.db.Exec(ctx, insertSheet,
		arg.ID,
		arg.SessionID,
		arg.SheetName,
		arg.SheetIndex,
		arg.RowCount,
		arg.ColumnCount,
		arg.Headers,
	)
	return err
}

const getSheet = `-- name: GetSheet :one
SELECT id, session_id, sheet_name, sheet_index, row_count, column_count, headers
FROM sheets
WHERE id = $1
`

func (q *Queries) GetSheet(ctx context.Context, id uuid.UUID) (Sheet, error) {
	row := q.db.QueryRow(ctx, getSheet, id)
	var i Sheet
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.SheetName,
		&i.SheetIndex,
		&i.RowCount,
		&i.ColumnCount,
		&i.Headers,
	)
	return i, notFound(err)
}

const listSheetsBySession = `-- name: ListSheetsBySession :many
SELECT id, session_id, sheet_name, sheet_index, row_count, column_count, headers
FROM sheets
WHERE session_id = $1
ORDER BY sheet_index
`

func (q *Queries) ListSheetsBySession(ctx context.Context, sessionID uuid.UUID) ([]Sheet, error) {
	rows, err := q.db.Query(ctx, listSheetsBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sheet
	for rows.Next() {
		var i Sheet
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.SheetName,
			&i.SheetIndex,
			&i.RowCount,
			&i.ColumnCount,
			&i.Headers,
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

const insertExcludedSheet = `-- name: InsertExcludedSheet :exec
INSERT INTO excluded_sheets (id, session_id, sheet_name, exclusion_reason)
VALUES ($1, $2, $3, $4)
`

type InsertExcludedSheetParams struct {
	ID              uuid.UUID
	SessionID       uuid.UUID
	SheetName       string
	ExclusionReason pgtype.Text
}

func (q *Queries) InsertExcludedSheet(ctx context.Context, arg InsertExcludedSheetParams) error {
	_, err := q.db.Exec(ctx, insertExcludedSheet,
		arg.ID,
		arg.SessionID,
		arg.SheetName,
		arg.ExclusionReason,
	)
	return err
}

const listExcludedSheets = `-- name: ListExcludedSheets :many
SELECT id, session_id, sheet_name, exclusion_reason
FROM excluded_sheets
WHERE session_id = $1
ORDER BY sheet_name
`

func (q *Queries) ListExcludedSheets(ctx context.Context, sessionID uuid.UUID) ([]ExcludedSheet, error) {
	rows, err := q.db.Query(ctx, listExcludedSheets, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExcludedSheet
	for rows.Next() {
		var i ExcludedSheet
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.SheetName,
			&i.ExclusionReason,
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
