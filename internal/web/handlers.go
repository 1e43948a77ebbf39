package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetvault/internal/core"
	"github.com/JonMunkholm/sheetvault/internal/logging"
)

// handleImport accepts an upload payload and stores it as one session.
// A new session answers 201; already-imported content answers 200 with the
// existing session.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxPayloadSize)

	req, err := core.DecodeImportRequest(r.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.ImportSheets(withClientMetadata(r), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// handleListSessions returns a page of sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListSessions(r.Context(),
		parseIntParam(r, "page", 1),
		parseIntParam(r, "pageSize", 0),
	)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetSession returns one session with its sheets.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "sessionID")
	if !ok {
		return
	}

	detail, err := s.service.GetSession(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleDeleteSession removes a session and everything it owns.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "sessionID")
	if !ok {
		return
	}

	deleted, err := s.service.DeleteSession(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !deleted {
		s.respondError(w, r, core.ErrNotFound)
		return
	}

	logging.FromContext(r.Context()).Info("session deleted", "session_id", id)
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleListProcessingErrors returns failure records for a session id. The
// id need not belong to a stored session: failed imports leave none.
func (s *Server) handleListProcessingErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "sessionID")
	if !ok {
		return
	}

	errs, err := s.service.ListProcessingErrors(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"errors": errs})
}

// handleGetSheet returns one sheet with its decoded rows.
func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.uuidParam(w, r, "sheetID")
	if !ok {
		return
	}

	sheet, err := s.service.GetSheet(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

// handleSearch finds rows containing a term.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := core.SearchParams{
		Term:     q.Get("term"),
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "pageSize", 0),
	}

	if raw := strings.TrimSpace(q.Get("sessionId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondValidation(w, r, "sessionId", "must be a UUID")
			return
		}
		params.SessionID = uuid.NullUUID{UUID: id, Valid: true}
	}

	page, err := s.service.Search(r.Context(), params)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string                   `json:"status"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

// handleHealth reports whether the database is reachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Imports: s.service.ImportLimiterStatus()}
	if err := s.service.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// uuidParam parses a UUID path parameter, answering 400 when it is malformed.
func (s *Server) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		s.respondValidation(w, r, name, "must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
