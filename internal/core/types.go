package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

// ImportRequest is the upload payload produced by the spreadsheet exporter.
type ImportRequest struct {
	FileName   string         `json:"fileName" validate:"required,max=255"`
	ImportedBy string         `json:"importedBy,omitempty" validate:"max=255"`
	Metadata   ImportMetadata `json:"metadata"`
	Sheets     SheetSet       `json:"sheets"`
}

// ImportMetadata describes the export that produced the payload.
type ImportMetadata struct {
	ExportedAt     *time.Time `json:"exportedAt" validate:"required"`
	ExcludedSheets []string   `json:"excludedSheets" validate:"dive,required,max=255"`

	// ExclusionReasons optionally explains why a sheet was excluded, keyed by sheet name.
	ExclusionReasons map[string]string `json:"exclusionReasons,omitempty"`
}

// SheetPayload is one worksheet of an upload.
type SheetPayload struct {
	// Key is the property name the sheet was listed under in the payload.
	Key       string         `json:"-"`
	SheetName string         `json:"sheetName" validate:"max=255"`
	Headers   []string       `json:"headers" validate:"required"`
	Data      []rowcodec.Row `json:"data"`
}

// Name returns the sheet name, falling back to the payload key.
func (p SheetPayload) Name() string {
	if p.SheetName != "" {
		return p.SheetName
	}
	return p.Key
}

// SheetSet is the "sheets" object of a payload. Unlike a Go map it keeps the
// sheets in document order, which becomes their position index.
//
// Decoding is lenient: shape problems in individual sheets or rows are
// collected and reported by ValidateImportRequest alongside every other
// field error instead of aborting the decode.
type SheetSet struct {
	sheets   []SheetPayload
	present  bool
	problems []FieldError
}

// NewSheetSet builds a set from sheets in the given order.
func NewSheetSet(sheets ...SheetPayload) SheetSet {
	out := make([]SheetPayload, len(sheets))
	for i, s := range sheets {
		if s.Key == "" {
			s.Key = s.SheetName
		}
		out[i] = s
	}
	return SheetSet{sheets: out, present: true}
}

// All returns the sheets in document order.
func (s SheetSet) All() []SheetPayload { return s.sheets }

// Len returns the number of sheets.
func (s SheetSet) Len() int { return len(s.sheets) }

// MarshalJSON writes the sheets as an object in document order.
func (s SheetSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sheet := range s.sheets {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sheet.Key)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(sheet)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the sheets object in document order.
func (s *SheetSet) UnmarshalJSON(data []byte) error {
	*s = SheetSet{present: true}

	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		s.present = false
		return nil
	}
	if !res.IsObject() {
		s.problems = append(s.problems, FieldError{Field: "sheets", Message: "must be an object"})
		return nil
	}

	seen := make(map[string]bool)
	res.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		field := fmt.Sprintf("sheets[%s]", name)
		if seen[name] {
			s.problems = append(s.problems, FieldError{Field: field, Message: "duplicate sheet"})
			return true
		}
		seen[name] = true

		if !val.IsObject() {
			s.problems = append(s.problems, FieldError{Field: field, Message: "must be an object"})
			return true
		}

		sheet := SheetPayload{Key: name}
		if v := val.Get("sheetName"); v.Exists() && v.Type != gjson.Null {
			if v.Type != gjson.String {
				s.problems = append(s.problems, FieldError{Field: field + ".sheetName", Message: "must be a string"})
			} else {
				sheet.SheetName = v.Str
			}
		}

		if v := val.Get("headers"); v.Exists() && v.Type != gjson.Null {
			if err := json.Unmarshal([]byte(v.Raw), &sheet.Headers); err != nil {
				s.problems = append(s.problems, FieldError{Field: field + ".headers", Message: "must be an array of strings"})
			}
		}

		if v := val.Get("data"); v.Exists() && v.Type != gjson.Null {
			if !v.IsArray() {
				s.problems = append(s.problems, FieldError{Field: field + ".data", Message: "must be an array of objects"})
			} else {
				rows := v.Array()
				sheet.Data = make([]rowcodec.Row, 0, len(rows))
				for i, raw := range rows {
					var row rowcodec.Row
					if err := row.UnmarshalJSON([]byte(raw.Raw)); err != nil {
						s.problems = append(s.problems, FieldError{
							Field:   fmt.Sprintf("%s.data[%d]", field, i),
							Message: err.Error(),
						})
						continue
					}
					sheet.Data = append(sheet.Data, row)
				}
			}
		}

		s.sheets = append(s.sheets, sheet)
		return true
	})
	return nil
}

// ImportResult is returned by ImportSheets.
type ImportResult struct {
	SessionID       uuid.UUID `json:"sessionId"`
	Message         string    `json:"message"`
	ProcessedSheets int       `json:"processedSheets"`
	TotalRows       int       `json:"totalRows"`
	ExcludedSheets  int       `json:"excludedSheets"`
	// ProcessingTime is the elapsed import time in milliseconds.
	ProcessingTime int64 `json:"processingTime"`
	// Duplicate is set when the content was already imported and the
	// existing session is returned instead of a new one.
	Duplicate bool `json:"duplicate"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID              uuid.UUID `json:"id"`
	FileName        string    `json:"fileName"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
	TotalSheets     int       `json:"totalSheets"`
	ProcessedSheets int       `json:"processedSheets"`
	ExcludedSheets  int       `json:"excludedSheets"`
	TotalRows       int       `json:"totalRows"`
	ImportedAt      time.Time `json:"importedAt"`
	ImportedBy      string    `json:"importedBy,omitempty"`
	Status          string    `json:"status"`
	ProcessingTime  int64     `json:"processingTime"`
}

// SessionDetail is a session with its sheets and excluded sheets.
type SessionDetail struct {
	SessionSummary
	Sheets             []SheetSummary      `json:"sheets"`
	ExcludedSheetsList []ExcludedSheetInfo `json:"excludedSheetsList"`
}

// SheetSummary describes a stored sheet without its rows.
type SheetSummary struct {
	ID          uuid.UUID `json:"id"`
	SheetName   string    `json:"sheetName"`
	SheetIndex  int       `json:"sheetIndex"`
	RowCount    int       `json:"rowCount"`
	ColumnCount int       `json:"columnCount"`
	Headers     []string  `json:"headers"`
}

// ExcludedSheetInfo names a sheet left out of an import.
type ExcludedSheetInfo struct {
	SheetName       string  `json:"sheetName"`
	ExclusionReason *string `json:"exclusionReason"`
}

// SheetDetail is a stored sheet with its decoded rows.
type SheetDetail struct {
	ID          uuid.UUID      `json:"id"`
	SessionID   uuid.UUID      `json:"sessionId"`
	SheetName   string         `json:"sheetName"`
	SheetIndex  int            `json:"sheetIndex"`
	RowCount    int            `json:"rowCount"`
	ColumnCount int            `json:"columnCount"`
	Headers     []string       `json:"headers"`
	Data        []rowcodec.Row `json:"data"`
}

// SearchParams filters a row search.
type SearchParams struct {
	Term      string        `validate:"required,max=500"`
	SessionID uuid.NullUUID `validate:"-"`
	Page      int           `validate:"-"`
	PageSize  int           `validate:"-"`
}

// SearchResult is one matching row.
type SearchResult struct {
	ID         uuid.UUID    `json:"id"`
	Data       rowcodec.Row `json:"data"`
	RowIndex   int          `json:"rowIndex"`
	SheetID    uuid.UUID    `json:"sheetId"`
	SheetName  string       `json:"sheetName"`
	SessionID  uuid.UUID    `json:"sessionId"`
	FileName   string       `json:"fileName"`
	ImportedAt time.Time    `json:"importedAt"`
}

// ProcessingErrorInfo is an audit record of a failed import.
type ProcessingErrorInfo struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"sessionId"`
	SheetName    string    `json:"sheetName,omitempty"`
	RowIndex     *int      `json:"rowIndex,omitempty"`
	ErrorMessage string    `json:"errorMessage"`
	ErrorType    string    `json:"errorType"`
	CreatedAt    time.Time `json:"createdAt"`
}
