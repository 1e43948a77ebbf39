package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/JonMunkholm/sheetvault/internal/database"
	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

// ListSessions returns a page of sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, page, pageSize int) (Page[SessionSummary], error) {
	req := normalizePage(page, pageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)

	total, err := s.repo.CountSessions(ctx)
	if err != nil {
		return Page[SessionSummary]{}, fmt.Errorf("count sessions: %w", err)
	}

	var sessions []database.ImportSession
	if int64(req.offset()) < total {
		sessions, err = s.repo.ListSessions(ctx, database.ListSessionsParams{
			Limit:  req.limit(),
			Offset: req.offset(),
		})
		if err != nil {
			return Page[SessionSummary]{}, fmt.Errorf("list sessions: %w", err)
		}
	}

	return newPage(lo.Map(sessions, func(row database.ImportSession, _ int) SessionSummary {
		return toSessionSummary(row)
	}), total, req), nil
}

// GetSession returns a session with its sheets and excluded sheets.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*SessionDetail, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, lookupError("session", id, err)
	}

	sheets, err := s.repo.ListSheetsBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	excluded, err := s.repo.ListExcludedSheets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list excluded sheets: %w", err)
	}

	return &SessionDetail{
		SessionSummary: toSessionSummary(session),
		Sheets: lo.Map(sheets, func(sh database.Sheet, _ int) SheetSummary {
			return SheetSummary{
				ID:          sh.ID,
				SheetName:   sh.SheetName,
				SheetIndex:  int(sh.SheetIndex),
				RowCount:    int(sh.RowCount),
				ColumnCount: int(sh.ColumnCount),
				Headers:     rowcodec.DecapitalizeHeaders(rowcodec.DecodeHeaders(sh.Headers)),
			}
		}),
		ExcludedSheetsList: lo.Map(excluded, func(ex database.ExcludedSheet, _ int) ExcludedSheetInfo {
			info := ExcludedSheetInfo{SheetName: ex.SheetName}
			if ex.ExclusionReason.Valid {
				info.ExclusionReason = lo.ToPtr(ex.ExclusionReason.String)
			}
			return info
		}),
	}, nil
}

// GetSheet returns a sheet with every row decoded, in row order.
func (s *Service) GetSheet(ctx context.Context, id uuid.UUID) (*SheetDetail, error) {
	sheet, err := s.repo.GetSheet(ctx, id)
	if err != nil {
		return nil, lookupError("sheet", id, err)
	}

	rows, err := s.repo.ListSheetRows(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sheet rows: %w", err)
	}

	return &SheetDetail{
		ID:          sheet.ID,
		SessionID:   sheet.SessionID,
		SheetName:   sheet.SheetName,
		SheetIndex:  int(sheet.SheetIndex),
		RowCount:    int(sheet.RowCount),
		ColumnCount: int(sheet.ColumnCount),
		Headers:     rowcodec.DecapitalizeHeaders(rowcodec.DecodeHeaders(sheet.Headers)),
		Data: lo.Map(rows, func(r database.SheetRow, _ int) rowcodec.Row {
			return rowcodec.Decode(r.RowData)
		}),
	}, nil
}

// Search finds rows whose stored payload contains the term, ignoring case.
// Results are ordered by session import time (newest first), then sheet
// position, then row index.
func (s *Service) Search(ctx context.Context, params SearchParams) (Page[SearchResult], error) {
	if err := ValidateSearchParams(params); err != nil {
		return Page[SearchResult]{}, err
	}
	req := normalizePage(params.Page, params.PageSize, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	pattern := database.ContainsPattern(params.Term)

	total, err := s.repo.CountSearchRows(ctx, database.CountSearchRowsParams{
		Pattern:   pattern,
		SessionID: params.SessionID,
	})
	if err != nil {
		return Page[SearchResult]{}, fmt.Errorf("count search results: %w", err)
	}

	var rows []database.SearchRow
	if int64(req.offset()) < total {
		rows, err = s.repo.SearchRows(ctx, database.SearchRowsParams{
			Pattern:   pattern,
			SessionID: params.SessionID,
			Limit:     req.limit(),
			Offset:    req.offset(),
		})
		if err != nil {
			return Page[SearchResult]{}, fmt.Errorf("search rows: %w", err)
		}
	}

	return newPage(lo.Map(rows, func(r database.SearchRow, _ int) SearchResult {
		return SearchResult{
			ID:         r.RowID,
			Data:       rowcodec.Decode(r.RowData),
			RowIndex:   int(r.RowIndex),
			SheetID:    r.SheetID,
			SheetName:  r.SheetName,
			SessionID:  r.SessionID,
			FileName:   r.FileName,
			ImportedAt: r.ImportedAt,
		}
	}), total, req), nil
}

// DeleteSession removes a session and, by cascade, everything it owns.
// It reports false when no such session existed.
func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.repo.DeleteSession(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}

// ListProcessingErrors returns the failure records stored for a session id.
func (s *Service) ListProcessingErrors(ctx context.Context, sessionID uuid.UUID) ([]ProcessingErrorInfo, error) {
	rows, err := s.repo.ListProcessingErrors(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list processing errors: %w", err)
	}
	out := lo.Map(rows, func(pe database.ProcessingError, _ int) ProcessingErrorInfo {
		info := ProcessingErrorInfo{
			ID:           pe.ID,
			SessionID:    pe.SessionID,
			SheetName:    pe.SheetName.String,
			ErrorMessage: pe.ErrorMessage,
			ErrorType:    pe.ErrorType,
			CreatedAt:    pe.CreatedAt,
		}
		if pe.RowIndex.Valid {
			info.RowIndex = lo.ToPtr(int(pe.RowIndex.Int32))
		}
		return info
	})
	return out, nil
}

func toSessionSummary(row database.ImportSession) SessionSummary {
	return SessionSummary{
		ID:              row.ID,
		FileName:        row.FileName,
		Fingerprint:     row.Fingerprint.String,
		TotalSheets:     int(row.TotalSheets),
		ProcessedSheets: int(row.ProcessedSheets),
		ExcludedSheets:  int(row.ExcludedSheets),
		TotalRows:       int(row.TotalRows),
		ImportedAt:      row.ImportedAt,
		ImportedBy:      row.ImportedBy.String,
		Status:          string(row.Status),
		ProcessingTime:  row.ProcessingMs,
	}
}

func lookupError(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", kind, err)
}
