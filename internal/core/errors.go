package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetvault/internal/database"
)

// ErrNotFound is returned when a session or sheet id does not exist.
var ErrNotFound = database.ErrNotFound

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in a request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err carries request validation failures.
func IsValidationError(err error) bool {
	var v ValidationErrors
	return errors.As(err, &v)
}

// WriteStage names the step of an import that failed.
type WriteStage string

const (
	StageFingerprint WriteStage = "fingerprint"
	StageSession     WriteStage = "session"
	StageExcluded    WriteStage = "excluded_sheets"
	StageSheet       WriteStage = "sheet"
	StageRows        WriteStage = "rows"
	StageComplete    WriteStage = "complete"
	StageTransaction WriteStage = "transaction"
)

// WriteError reports a failed import. Nothing from the import was persisted.
type WriteError struct {
	Stage WriteStage
	Sheet string
	// Row is the zero-based row index when the failure is tied to one row.
	Row *int
	Err error
}

func (e *WriteError) Error() string {
	switch {
	case e.Sheet != "" && e.Row != nil:
		return fmt.Sprintf("import failed at %s (sheet %q, row %d): %v", e.Stage, e.Sheet, *e.Row, e.Err)
	case e.Sheet != "":
		return fmt.Sprintf("import failed at %s (sheet %q): %v", e.Stage, e.Sheet, e.Err)
	default:
		return fmt.Sprintf("import failed at %s: %v", e.Stage, e.Err)
	}
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
