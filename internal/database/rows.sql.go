package database

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InsertSheetRowsParams struct {
	ID       uuid.UUID
	SheetID  uuid.UUID
	RowIndex int32
	RowData  string
	RowHash  string
}

// iteratorForInsertSheetRows implements pgx.CopyFromSource.
type iteratorForInsertSheetRows struct {
	rows                 []InsertSheetRowsParams
	skippedFirstNextCall bool
}

func (r *iteratorForInsertSheetRows) Next() bool {
	if len(r.rows) == 0 {
		return false
	}
	if !r.skippedFirstNextCall {
		r.skippedFirstNextCall = true
		return true
	}
	r.rows = r.rows[1:]
	return len(r.rows) > 0
}

func (r iteratorForInsertSheetRows) Values() ([]interface{}, error) {
	return []interface{}{
		r.rows[0].ID,
		r.rows[0].SheetID,
		r.rows[0].RowIndex,
		r.rows[0].RowData,
		r.rows[0].RowHash,
	}, nil
}

func (r iteratorForInsertSheetRows) Err() error {
	return nil
}

// InsertSheetRows bulk-loads rows with COPY.
func (q *Queries) InsertSheetRows(ctx context.Context, arg []InsertSheetRowsParams) (int64, error) {
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"sheet_rows"},
		[]string{"id", "sheet_id", "row_index", "row_data", "row_hash"},
		&iteratorForInsertSheetRows{rows: arg},
	)
}

const listSheetRows = `-- name: ListSheetRows :many
SELECT id, sheet_id, row_index, row_data, row_hash
FROM sheet_rows
WHERE sheet_id = $1
ORDER BY row_index
`

func (q *Queries) ListSheetRows(ctx context.Context, sheetID uuid.UUID) ([]SheetRow, error) {
	rows, err := q.db.Query(ctx, listSheetRows, sheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SheetRow
	for rows.Next() {
		var i SheetRow
		if err := rows.Scan(
			&i.ID,
			&i.SheetID,
			&i.RowIndex,
			&i.RowData,
			&i.RowHash,
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

const countSearchRows = `-- name: CountSearchRows :one
SELECT COUNT(*)
FROM sheet_rows r
JOIN sheets s ON s.id = r.sheet_id
WHERE r.row_data ILIKE $1 ESCAPE '\'
  AND ($2::uuid IS NULL OR s.session_id = $2)
`

type CountSearchRowsParams struct {
	Pattern   string
	SessionID uuid.NullUUID
}

func (q *Queries) CountSearchRows(ctx context.Context, arg CountSearchRowsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countSearchRows, arg.Pattern, arg.SessionID).Scan(&count)
	return count, err
}

const searchRows = `-- name: SearchRows :many
SELECT r.id, r.row_index, r.row_data, s.id, s.sheet_name, s.sheet_index,
       i.id, i.file_name, i.imported_at
FROM sheet_rows r
JOIN sheets s ON s.id = r.sheet_id
JOIN import_sessions i ON i.id = s.session_id
WHERE r.row_data ILIKE $1 ESCAPE '\'
  AND ($2::uuid IS NULL OR s.session_id = $2)
ORDER BY i.imported_at DESC, i.id DESC, s.sheet_index, r.row_index
LIMIT $3 OFFSET $4
`

type SearchRowsParams struct {
	Pattern   string
	SessionID uuid.NullUUID
	Limit     int32
	Offset    int32
}

func (q *Queries) SearchRows(ctx context.Context, arg SearchRowsParams) ([]SearchRow, error) {
	rows, err := q.db.Query(ctx, searchRows, arg.Pattern, arg.SessionID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SearchRow
	for rows.Next() {
		var i SearchRow
		if err := rows.Scan(
			&i.RowID,
			&i.RowIndex,
			&i.RowData,
			&i.SheetID,
			&i.SheetName,
			&i.SheetIndex,
			&i.SessionID,
			&i.FileName,
			&i.ImportedAt,
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds an ILIKE pattern matching term anywhere, with the
// LIKE metacharacters in term taken literally.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
