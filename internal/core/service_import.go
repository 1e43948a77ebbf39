package core

// service_import.go writes an upload as one atomic unit of work.
//
// Flow:
//  1. Validate the payload; nothing is written for an invalid request.
//  2. Drop excluded sheets and fingerprint the rest. A fingerprint that is
//     already stored short-circuits to the existing session.
//  3. Take an import slot, then in a single transaction insert the session
//     (Processing), excluded sheets, each sheet and its rows in COPY
//     batches, and finally mark the session Completed.
//  4. Any failure rolls the whole transaction back. A concurrent upload of
//     the same content loses on the fingerprint unique key and resolves to
//     the winner's session.
//
// The transaction runs on a context detached from the caller's cancellation:
// once started, an import either completes or fails on a store fault.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"

	"github.com/JonMunkholm/sheetvault/internal/database"
	"github.com/JonMunkholm/sheetvault/internal/fingerprint"
	"github.com/JonMunkholm/sheetvault/internal/logging"
	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

const (
	msgImported  = "Import completed successfully"
	msgDuplicate = "This content was already imported; returning the existing session"
)

// importPlan is a validated request reduced to what gets written.
type importPlan struct {
	fileName   string
	importedBy pgtype.Text
	sheets     []SheetPayload
	excluded   []string
	reasons    map[string]string
	totalRows  int
}

func planImport(req ImportRequest) importPlan {
	excluded := lo.Uniq(req.Metadata.ExcludedSheets)
	skip := lo.SliceToMap(excluded, func(name string) (string, struct{}) {
		return name, struct{}{}
	})

	sheets := lo.Filter(req.Sheets.All(), func(s SheetPayload, _ int) bool {
		_, dropKey := skip[s.Key]
		_, dropName := skip[s.Name()]
		return !dropKey && !dropName
	})

	return importPlan{
		fileName:   req.FileName,
		importedBy: pgtype.Text{String: req.ImportedBy, Valid: req.ImportedBy != ""},
		sheets:     sheets,
		excluded:   excluded,
		reasons:    req.Metadata.ExclusionReasons,
		totalRows: lo.SumBy(sheets, func(s SheetPayload) int {
			return len(s.Data)
		}),
	}
}

func (p importPlan) fingerprintInput() []fingerprint.Sheet {
	return lo.Map(p.sheets, func(s SheetPayload, _ int) fingerprint.Sheet {
		return fingerprint.Sheet{Name: s.Name(), Headers: s.Headers, Rows: s.Data}
	})
}

// ImportSheets validates, deduplicates and persists an upload.
func (s *Service) ImportSheets(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := s.now()

	if err := ValidateImportRequest(req); err != nil {
		return nil, err
	}

	plan := planImport(req)
	digest, err := fingerprint.Compute(plan.fingerprintInput())
	if err != nil {
		return nil, &WriteError{Stage: StageFingerprint, Err: err}
	}

	log := logging.WithFields(ctx,
		"file_name", plan.fileName,
		"fingerprint", digest,
		"client_ip", ClientIPFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)

	if existing, ok, err := s.findDuplicate(ctx, digest); err != nil {
		return nil, err
	} else if ok {
		log.Info("duplicate import detected", "session_id", existing.ID)
		return duplicateResult(existing), nil
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Warn("import rejected", "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	writeCtx := context.WithoutCancel(ctx)
	sessionID := s.newID()
	log = log.With("session_id", sessionID)
	log.Info("import started",
		"sheets", len(plan.sheets),
		"excluded", len(plan.excluded),
		"rows", plan.totalRows,
	)

	var elapsed int64
	err = s.repo.ExecTx(writeCtx, func(q database.Querier) error {
		var werr error
		elapsed, werr = s.writeImport(writeCtx, q, sessionID, digest, plan, start)
		return werr
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateFingerprint) {
			existing, ok, lookupErr := s.findDuplicate(writeCtx, digest)
			if lookupErr == nil && ok {
				log.Info("concurrent duplicate import resolved", "existing_session_id", existing.ID)
				return duplicateResult(existing), nil
			}
		}

		var werr *WriteError
		if !errors.As(err, &werr) {
			werr = &WriteError{Stage: StageTransaction, Err: err}
		}
		failLog := log.With("stage", werr.Stage, "sheet", werr.Sheet)
		if werr.Row != nil {
			failLog = failLog.With("row", *werr.Row)
		}
		failLog.Error("import failed", "error", werr.Err)
		s.recordFailure(writeCtx, log, sessionID, werr)
		return nil, werr
	}

	log.Info("import completed", "duration_ms", elapsed)

	return &ImportResult{
		SessionID:       sessionID,
		Message:         msgImported,
		ProcessedSheets: len(plan.sheets),
		TotalRows:       plan.totalRows,
		ExcludedSheets:  len(plan.excluded),
		ProcessingTime:  elapsed,
	}, nil
}

// findDuplicate looks up a session by fingerprint.
func (s *Service) findDuplicate(ctx context.Context, digest string) (database.ImportSession, bool, error) {
	existing, err := s.repo.GetSessionByFingerprint(ctx, digest)
	if errors.Is(err, database.ErrNotFound) {
		return database.ImportSession{}, false, nil
	}
	if err != nil {
		return database.ImportSession{}, false, fmt.Errorf("look up fingerprint: %w", err)
	}
	return existing, true, nil
}

func duplicateResult(existing database.ImportSession) *ImportResult {
	return &ImportResult{
		SessionID:       existing.ID,
		Message:         msgDuplicate,
		ProcessedSheets: int(existing.ProcessedSheets),
		TotalRows:       int(existing.TotalRows),
		ExcludedSheets:  int(existing.ExcludedSheets),
		ProcessingTime:  existing.ProcessingMs,
		Duplicate:       true,
	}
}

// writeImport performs every insert of one import on q and returns the
// elapsed milliseconds stored on the session.
func (s *Service) writeImport(ctx context.Context, q database.Querier, sessionID uuid.UUID, digest string, plan importPlan, start time.Time) (int64, error) {
	err := q.InsertImportSession(ctx, database.InsertImportSessionParams{
		ID:              sessionID,
		FileName:        plan.fileName,
		Fingerprint:     pgtype.Text{String: digest, Valid: true},
		TotalSheets:     int32(len(plan.sheets) + len(plan.excluded)),
		ProcessedSheets: int32(len(plan.sheets)),
		ExcludedSheets:  int32(len(plan.excluded)),
		TotalRows:       int32(plan.totalRows),
		ImportedAt:      start.UTC(),
		ImportedBy:      plan.importedBy,
		Status:          database.StatusProcessing,
	})
	if err != nil {
		return 0, &WriteError{Stage: StageSession, Err: err}
	}

	for _, name := range plan.excluded {
		reason, ok := plan.reasons[name]
		err := q.InsertExcludedSheet(ctx, database.InsertExcludedSheetParams{
			ID:              s.newID(),
			SessionID:       sessionID,
			SheetName:       name,
			ExclusionReason: pgtype.Text{String: reason, Valid: ok && reason != ""},
		})
		if err != nil {
			return 0, &WriteError{Stage: StageExcluded, Sheet: name, Err: err}
		}
	}

	for i, sheet := range plan.sheets {
		if err := s.writeSheet(ctx, q, sessionID, int32(i), sheet); err != nil {
			return 0, err
		}
	}

	elapsed := s.now().Sub(start).Milliseconds()
	err = q.CompleteImportSession(ctx, database.CompleteImportSessionParams{
		ID:           sessionID,
		Status:       database.StatusCompleted,
		ProcessingMs: elapsed,
	})
	if err != nil {
		return 0, &WriteError{Stage: StageComplete, Err: err}
	}
	return elapsed, nil
}

// writeSheet inserts one sheet and its rows in sequential batches.
func (s *Service) writeSheet(ctx context.Context, q database.Querier, sessionID uuid.UUID, index int32, sheet SheetPayload) error {
	name := sheet.Name()

	headers, err := rowcodec.EncodeHeaders(sheet.Headers)
	if err != nil {
		return &WriteError{Stage: StageSheet, Sheet: name, Err: err}
	}

	sheetID := s.newID()
	err = q.InsertSheet(ctx, database.InsertSheetParams{
		ID:          sheetID,
		SessionID:   sessionID,
		SheetName:   name,
		SheetIndex:  index,
		RowCount:    int32(len(sheet.Data)),
		ColumnCount: int32(len(sheet.Headers)),
		Headers:     headers,
	})
	if err != nil {
		return &WriteError{Stage: StageSheet, Sheet: name, Err: err}
	}

	rows := make([]database.InsertSheetRowsParams, len(sheet.Data))
	for i, row := range sheet.Data {
		payload, err := rowcodec.Encode(row)
		if err != nil {
			return &WriteError{Stage: StageRows, Sheet: name, Row: lo.ToPtr(i), Err: err}
		}
		rows[i] = database.InsertSheetRowsParams{
			ID:       s.newID(),
			SheetID:  sheetID,
			RowIndex: int32(i),
			RowData:  payload,
			RowHash:  rowcodec.Digest(payload),
		}
	}

	for b, batch := range lo.Chunk(rows, s.opts.BatchSize) {
		n, err := q.InsertSheetRows(ctx, batch)
		if err != nil {
			werr := &WriteError{Stage: StageRows, Sheet: name, Err: err}
			if line, ok := database.CopyLine(err); ok && line < len(batch) {
				werr.Row = lo.ToPtr(b*s.opts.BatchSize + line)
			}
			return werr
		}
		if n != int64(len(batch)) {
			return &WriteError{
				Stage: StageRows,
				Sheet: name,
				Err:   fmt.Errorf("copied %d of %d rows", n, len(batch)),
			}
		}
	}
	return nil
}

// recordFailure stores an audit row for a failed import. It runs outside the
// rolled-back transaction and never fails the caller.
func (s *Service) recordFailure(ctx context.Context, log *slog.Logger, sessionID uuid.UUID, werr *WriteError) {
	err := s.repo.InsertProcessingError(ctx, database.InsertProcessingErrorParams{
		ID:           s.newID(),
		SessionID:    sessionID,
		SheetName:    pgtype.Text{String: werr.Sheet, Valid: werr.Sheet != ""},
		RowIndex:     rowIndex(werr.Row),
		ErrorMessage: werr.Err.Error(),
		ErrorType:    string(werr.Stage),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		log.Warn("failed to record processing error", "error", err)
	}
}

func rowIndex(row *int) pgtype.Int4 {
	if row == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*row), Valid: true}
}
