package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetvault/internal/database"
)

// memState is one consistent snapshot of every table.
type memState struct {
	sessions map[uuid.UUID]database.ImportSession
	sheets   map[uuid.UUID]database.Sheet
	rows     map[uuid.UUID]database.SheetRow
	excluded map[uuid.UUID]database.ExcludedSheet
	perrors  map[uuid.UUID]database.ProcessingError
}

func newMemState() *memState {
	return &memState{
		sessions: map[uuid.UUID]database.ImportSession{},
		sheets:   map[uuid.UUID]database.Sheet{},
		rows:     map[uuid.UUID]database.SheetRow{},
		excluded: map[uuid.UUID]database.ExcludedSheet{},
		perrors:  map[uuid.UUID]database.ProcessingError{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		sessions: maps.Clone(s.sessions),
		sheets:   maps.Clone(s.sheets),
		rows:     maps.Clone(s.rows),
		excluded: maps.Clone(s.excluded),
		perrors:  maps.Clone(s.perrors),
	}
}

func (s *memState) sessionByFingerprint(fp string) (database.ImportSession, bool) {
	for _, sess := range s.sessions {
		if sess.Fingerprint.Valid && sess.Fingerprint.String == fp {
			return sess, true
		}
	}
	return database.ImportSession{}, false
}

// memStore is an in-memory Repository with transactional semantics: a
// transaction works on a private copy that is merged back only on success.
type memStore struct {
	mu        sync.Mutex
	committed *memState

	faultMu sync.Mutex
	calls   map[string]int
	faults  map[string]memFault

	// onFingerprintMiss runs after a fingerprint lookup finds nothing.
	onFingerprintMiss func()
	// onTxStart runs when a transaction begins.
	onTxStart func()

	txStarted   int
	txCommitted int
	txRolled    int
}

type memFault struct {
	call int
	err  error
}

func newMemStore() *memStore {
	return &memStore{
		committed: newMemState(),
		calls:     map[string]int{},
		faults:    map[string]memFault{},
	}
}

// failOn makes the nth call (1-based) of method return err.
func (m *memStore) failOn(method string, nth int, err error) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.faults[method] = memFault{call: nth, err: err}
}

func (m *memStore) fault(method string) error {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.calls[method]++
	if f, ok := m.faults[method]; ok && f.call == m.calls[method] {
		return f.err
	}
	return nil
}

func (m *memStore) callCount(method string) int {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	return m.calls[method]
}

// snapshot returns a copy of the committed state for assertions.
func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed.clone()
}

// seedSession commits a session directly, bypassing the service.
func (m *memStore) seedSession(sess database.ImportSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed.sessions[sess.ID] = sess
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	m.mu.Lock()
	tx := m.committed.clone()
	m.txStarted++
	m.mu.Unlock()

	rollback := func() {
		m.mu.Lock()
		m.txRolled++
		m.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if m.onTxStart != nil {
		m.onTxStart()
	}

	if err := fn(&memQuerier{store: m, tx: tx}); err != nil {
		rollback()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range tx.sessions {
		if _, existed := m.committed.sessions[id]; existed || !sess.Fingerprint.Valid {
			continue
		}
		if _, taken := m.committed.sessionByFingerprint(sess.Fingerprint.String); taken {
			m.txRolled++
			return database.ErrDuplicateFingerprint
		}
	}
	maps.Copy(m.committed.sessions, tx.sessions)
	maps.Copy(m.committed.sheets, tx.sheets)
	maps.Copy(m.committed.rows, tx.rows)
	maps.Copy(m.committed.excluded, tx.excluded)
	maps.Copy(m.committed.perrors, tx.perrors)
	m.txCommitted++
	return nil
}

// Non-transactional calls run directly against committed state.
func (m *memStore) q() *memQuerier { return &memQuerier{store: m} }

func (m *memStore) CompleteImportSession(ctx context.Context, arg database.CompleteImportSessionParams) error {
	return m.q().CompleteImportSession(ctx, arg)
}
func (m *memStore) CountSearchRows(ctx context.Context, arg database.CountSearchRowsParams) (int64, error) {
	return m.q().CountSearchRows(ctx, arg)
}
func (m *memStore) CountSessions(ctx context.Context) (int64, error) {
	return m.q().CountSessions(ctx)
}
func (m *memStore) DeleteSession(ctx context.Context, id uuid.UUID) (int64, error) {
	return m.q().DeleteSession(ctx, id)
}
func (m *memStore) GetSession(ctx context.Context, id uuid.UUID) (database.ImportSession, error) {
	return m.q().GetSession(ctx, id)
}
func (m *memStore) GetSessionByFingerprint(ctx context.Context, fp string) (database.ImportSession, error) {
	return m.q().GetSessionByFingerprint(ctx, fp)
}
func (m *memStore) GetSheet(ctx context.Context, id uuid.UUID) (database.Sheet, error) {
	return m.q().GetSheet(ctx, id)
}
func (m *memStore) InsertExcludedSheet(ctx context.Context, arg database.InsertExcludedSheetParams) error {
	return m.q().InsertExcludedSheet(ctx, arg)
}
func (m *memStore) InsertImportSession(ctx context.Context, arg database.InsertImportSessionParams) error {
	return m.q().InsertImportSession(ctx, arg)
}
func (m *memStore) InsertProcessingError(ctx context.Context, arg database.InsertProcessingErrorParams) error {
	return m.q().InsertProcessingError(ctx, arg)
}
func (m *memStore) InsertSheet(ctx context.Context, arg database.InsertSheetParams) error {
	return m.q().InsertSheet(ctx, arg)
}
func (m *memStore) InsertSheetRows(ctx context.Context, arg []database.InsertSheetRowsParams) (int64, error) {
	return m.q().InsertSheetRows(ctx, arg)
}
func (m *memStore) ListExcludedSheets(ctx context.Context, id uuid.UUID) ([]database.ExcludedSheet, error) {
	return m.q().ListExcludedSheets(ctx, id)
}
func (m *memStore) ListProcessingErrors(ctx context.Context, id uuid.UUID) ([]database.ProcessingError, error) {
	return m.q().ListProcessingErrors(ctx, id)
}
func (m *memStore) ListSessions(ctx context.Context, arg database.ListSessionsParams) ([]database.ImportSession, error) {
	return m.q().ListSessions(ctx, arg)
}
func (m *memStore) ListSheetRows(ctx context.Context, id uuid.UUID) ([]database.SheetRow, error) {
	return m.q().ListSheetRows(ctx, id)
}
func (m *memStore) ListSheetsBySession(ctx context.Context, id uuid.UUID) ([]database.Sheet, error) {
	return m.q().ListSheetsBySession(ctx, id)
}
func (m *memStore) PurgeProcessingErrors(ctx context.Context, before time.Time) (int64, error) {
	return m.q().PurgeProcessingErrors(ctx, before)
}
func (m *memStore) SearchRows(ctx context.Context, arg database.SearchRowsParams) ([]database.SearchRow, error) {
	return m.q().SearchRows(ctx, arg)
}

var _ Repository = (*memStore)(nil)

// memQuerier runs queries against a transaction copy, or against committed
// state under the store lock when tx is nil.
type memQuerier struct {
	store *memStore
	tx    *memState
}

var _ database.Querier = (*memQuerier)(nil)

func (q *memQuerier) with(fn func(st *memState) error) error {
	if q.tx != nil {
		return fn(q.tx)
	}
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	return fn(q.store.committed)
}

func errUnique(constraint string) error {
	return fmt.Errorf("duplicate key value violates unique constraint %q", constraint)
}

func (q *memQuerier) InsertImportSession(_ context.Context, arg database.InsertImportSessionParams) error {
	if err := q.store.fault("InsertImportSession"); err != nil {
		return err
	}
	if arg.Fingerprint.Valid && q.tx != nil {
		q.store.mu.Lock()
		_, taken := q.store.committed.sessionByFingerprint(arg.Fingerprint.String)
		q.store.mu.Unlock()
		if taken {
			return database.ErrDuplicateFingerprint
		}
	}
	return q.with(func(st *memState) error {
		if _, ok := st.sessions[arg.ID]; ok {
			return errUnique("import_sessions_pkey")
		}
		if arg.Fingerprint.Valid {
			if _, taken := st.sessionByFingerprint(arg.Fingerprint.String); taken {
				return database.ErrDuplicateFingerprint
			}
		}
		st.sessions[arg.ID] = database.ImportSession{
			ID:              arg.ID,
			FileName:        arg.FileName,
			Fingerprint:     arg.Fingerprint,
			TotalSheets:     arg.TotalSheets,
			ProcessedSheets: arg.ProcessedSheets,
			ExcludedSheets:  arg.ExcludedSheets,
			TotalRows:       arg.TotalRows,
			ImportedAt:      arg.ImportedAt,
			ImportedBy:      arg.ImportedBy,
			Status:          arg.Status,
		}
		return nil
	})
}

func (q *memQuerier) CompleteImportSession(_ context.Context, arg database.CompleteImportSessionParams) error {
	if err := q.store.fault("CompleteImportSession"); err != nil {
		return err
	}
	return q.with(func(st *memState) error {
		sess, ok := st.sessions[arg.ID]
		if !ok {
			return database.ErrNotFound
		}
		sess.Status = arg.Status
		sess.ProcessingMs = arg.ProcessingMs
		st.sessions[arg.ID] = sess
		return nil
	})
}

func (q *memQuerier) GetSessionByFingerprint(_ context.Context, fp string) (database.ImportSession, error) {
	if err := q.store.fault("GetSessionByFingerprint"); err != nil {
		return database.ImportSession{}, err
	}
	var (
		out   database.ImportSession
		found bool
	)
	_ = q.with(func(st *memState) error {
		out, found = st.sessionByFingerprint(fp)
		return nil
	})
	if !found {
		if hook := q.store.onFingerprintMiss; hook != nil {
			hook()
		}
		return database.ImportSession{}, database.ErrNotFound
	}
	return out, nil
}

func (q *memQuerier) GetSession(_ context.Context, id uuid.UUID) (database.ImportSession, error) {
	var out database.ImportSession
	err := q.with(func(st *memState) error {
		sess, ok := st.sessions[id]
		if !ok {
			return database.ErrNotFound
		}
		out = sess
		return nil
	})
	return out, err
}

func (q *memQuerier) CountSessions(context.Context) (int64, error) {
	var n int64
	_ = q.with(func(st *memState) error {
		n = int64(len(st.sessions))
		return nil
	})
	return n, nil
}

func sortedSessions(st *memState) []database.ImportSession {
	out := slices.Collect(maps.Values(st.sessions))
	slices.SortFunc(out, func(a, b database.ImportSession) int {
		if c := b.ImportedAt.Compare(a.ImportedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	return out
}

func slicePage[T any](items []T, limit, offset int32) []T {
	if int(offset) >= len(items) {
		return nil
	}
	end := min(int(offset)+int(limit), len(items))
	return items[offset:end]
}

func (q *memQuerier) ListSessions(_ context.Context, arg database.ListSessionsParams) ([]database.ImportSession, error) {
	if err := q.store.fault("ListSessions"); err != nil {
		return nil, err
	}
	var out []database.ImportSession
	_ = q.with(func(st *memState) error {
		out = slicePage(sortedSessions(st), arg.Limit, arg.Offset)
		return nil
	})
	return out, nil
}

func (q *memQuerier) DeleteSession(_ context.Context, id uuid.UUID) (int64, error) {
	if err := q.store.fault("DeleteSession"); err != nil {
		return 0, err
	}
	var n int64
	_ = q.with(func(st *memState) error {
		if _, ok := st.sessions[id]; !ok {
			return nil
		}
		n = 1
		delete(st.sessions, id)
		for sid, sh := range st.sheets {
			if sh.SessionID != id {
				continue
			}
			for rid, r := range st.rows {
				if r.SheetID == sid {
					delete(st.rows, rid)
				}
			}
			delete(st.sheets, sid)
		}
		for eid, ex := range st.excluded {
			if ex.SessionID == id {
				delete(st.excluded, eid)
			}
		}
		return nil
	})
	return n, nil
}

func (q *memQuerier) InsertSheet(_ context.Context, arg database.InsertSheetParams) error {
	if err := q.store.fault("InsertSheet"); err != nil {
		return err
	}
	return q.with(func(st *memState) error {
		if _, ok := st.sessions[arg.SessionID]; !ok {
			return errors.New(`insert or update on table "sheets" violates foreign key constraint`)
		}
		for _, sh := range st.sheets {
			if sh.SessionID == arg.SessionID && sh.SheetIndex == arg.SheetIndex {
				return errUnique("sheets_session_index_key")
			}
		}
		st.sheets[arg.ID] = database.Sheet{
			ID:          arg.ID,
			SessionID:   arg.SessionID,
			SheetName:   arg.SheetName,
			SheetIndex:  arg.SheetIndex,
			RowCount:    arg.RowCount,
			ColumnCount: arg.ColumnCount,
			Headers:     arg.Headers,
		}
		return nil
	})
}

func (q *memQuerier) GetSheet(_ context.Context, id uuid.UUID) (database.Sheet, error) {
	var out database.Sheet
	err := q.with(func(st *memState) error {
		sh, ok := st.sheets[id]
		if !ok {
			return database.ErrNotFound
		}
		out = sh
		return nil
	})
	return out, err
}

func (q *memQuerier) ListSheetsBySession(_ context.Context, id uuid.UUID) ([]database.Sheet, error) {
	var out []database.Sheet
	_ = q.with(func(st *memState) error {
		for _, sh := range st.sheets {
			if sh.SessionID == id {
				out = append(out, sh)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b database.Sheet) int { return int(a.SheetIndex - b.SheetIndex) })
	return out, nil
}

func (q *memQuerier) InsertExcludedSheet(_ context.Context, arg database.InsertExcludedSheetParams) error {
	if err := q.store.fault("InsertExcludedSheet"); err != nil {
		return err
	}
	return q.with(func(st *memState) error {
		st.excluded[arg.ID] = database.ExcludedSheet{
			ID:              arg.ID,
			SessionID:       arg.SessionID,
			SheetName:       arg.SheetName,
			ExclusionReason: arg.ExclusionReason,
		}
		return nil
	})
}

func (q *memQuerier) ListExcludedSheets(_ context.Context, id uuid.UUID) ([]database.ExcludedSheet, error) {
	var out []database.ExcludedSheet
	_ = q.with(func(st *memState) error {
		for _, ex := range st.excluded {
			if ex.SessionID == id {
				out = append(out, ex)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b database.ExcludedSheet) int { return strings.Compare(a.SheetName, b.SheetName) })
	return out, nil
}

func (q *memQuerier) InsertSheetRows(_ context.Context, arg []database.InsertSheetRowsParams) (int64, error) {
	if err := q.store.fault("InsertSheetRows"); err != nil {
		return 0, err
	}
	err := q.with(func(st *memState) error {
		for _, r := range arg {
			if _, ok := st.sheets[r.SheetID]; !ok {
				return errors.New(`insert or update on table "sheet_rows" violates foreign key constraint`)
			}
			for _, existing := range st.rows {
				if existing.SheetID == r.SheetID && existing.RowIndex == r.RowIndex {
					return errUnique("sheet_rows_sheet_index_key")
				}
			}
			st.rows[r.ID] = database.SheetRow{
				ID:       r.ID,
				SheetID:  r.SheetID,
				RowIndex: r.RowIndex,
				RowData:  r.RowData,
				RowHash:  r.RowHash,
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(arg)), nil
}

func (q *memQuerier) ListSheetRows(_ context.Context, id uuid.UUID) ([]database.SheetRow, error) {
	var out []database.SheetRow
	_ = q.with(func(st *memState) error {
		for _, r := range st.rows {
			if r.SheetID == id {
				out = append(out, r)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b database.SheetRow) int { return int(a.RowIndex - b.RowIndex) })
	return out, nil
}

func (q *memQuerier) searchAll(st *memState, pattern string, session uuid.NullUUID) []database.SearchRow {
	var out []database.SearchRow
	for _, r := range st.rows {
		if !ilike(r.RowData, pattern) {
			continue
		}
		sh := st.sheets[r.SheetID]
		if session.Valid && sh.SessionID != session.UUID {
			continue
		}
		sess := st.sessions[sh.SessionID]
		out = append(out, database.SearchRow{
			RowID:      r.ID,
			RowIndex:   r.RowIndex,
			RowData:    r.RowData,
			SheetID:    sh.ID,
			SheetName:  sh.SheetName,
			SheetIndex: sh.SheetIndex,
			SessionID:  sess.ID,
			FileName:   sess.FileName,
			ImportedAt: sess.ImportedAt,
		})
	}
	slices.SortFunc(out, func(a, b database.SearchRow) int {
		if c := b.ImportedAt.Compare(a.ImportedAt); c != 0 {
			return c
		}
		if c := strings.Compare(b.SessionID.String(), a.SessionID.String()); c != 0 {
			return c
		}
		if a.SheetIndex != b.SheetIndex {
			return int(a.SheetIndex - b.SheetIndex)
		}
		return int(a.RowIndex - b.RowIndex)
	})
	return out
}

func (q *memQuerier) CountSearchRows(_ context.Context, arg database.CountSearchRowsParams) (int64, error) {
	var n int64
	_ = q.with(func(st *memState) error {
		n = int64(len(q.searchAll(st, arg.Pattern, arg.SessionID)))
		return nil
	})
	return n, nil
}

func (q *memQuerier) SearchRows(_ context.Context, arg database.SearchRowsParams) ([]database.SearchRow, error) {
	var out []database.SearchRow
	_ = q.with(func(st *memState) error {
		out = slicePage(q.searchAll(st, arg.Pattern, arg.SessionID), arg.Limit, arg.Offset)
		return nil
	})
	return out, nil
}

func (q *memQuerier) InsertProcessingError(_ context.Context, arg database.InsertProcessingErrorParams) error {
	if err := q.store.fault("InsertProcessingError"); err != nil {
		return err
	}
	return q.with(func(st *memState) error {
		st.perrors[arg.ID] = database.ProcessingError{
			ID:           arg.ID,
			SessionID:    arg.SessionID,
			SheetName:    arg.SheetName,
			RowIndex:     arg.RowIndex,
			ErrorMessage: arg.ErrorMessage,
			ErrorType:    arg.ErrorType,
			CreatedAt:    arg.CreatedAt,
		}
		return nil
	})
}

func (q *memQuerier) ListProcessingErrors(_ context.Context, id uuid.UUID) ([]database.ProcessingError, error) {
	var out []database.ProcessingError
	_ = q.with(func(st *memState) error {
		for _, pe := range st.perrors {
			if pe.SessionID == id {
				out = append(out, pe)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b database.ProcessingError) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (q *memQuerier) PurgeProcessingErrors(_ context.Context, before time.Time) (int64, error) {
	if err := q.store.fault("PurgeProcessingErrors"); err != nil {
		return 0, err
	}
	var n int64
	_ = q.with(func(st *memState) error {
		for id, pe := range st.perrors {
			if pe.CreatedAt.Before(before) {
				delete(st.perrors, id)
				n++
			}
		}
		return nil
	})
	return n, nil
}

// ilike matches s against a LIKE pattern (%, _ and backslash escapes),
// folding case like Postgres ILIKE.
func ilike(s, pattern string) bool {
	return likeMatch([]rune(strings.ToLower(s)), []rune(strings.ToLower(pattern)))
}

func likeMatch(s, p []rune) bool {
	for len(p) > 0 {
		switch p[0] {
		case '%':
			for len(p) > 0 && p[0] == '%' {
				p = p[1:]
			}
			if len(p) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if likeMatch(s[i:], p) {
					return true
				}
			}
			return false
		case '_':
			if len(s) == 0 {
				return false
			}
			s, p = s[1:], p[1:]
		case '\\':
			if len(p) > 1 {
				p = p[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || s[0] != p[0] {
				return false
			}
			s, p = s[1:], p[1:]
		}
	}
	return len(s) == 0
}
