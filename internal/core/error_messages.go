package core

// error_messages.go maps technical errors to user-facing messages with a
// support code. Clients only ever see the mapped message; the original error
// goes to the logs.
//
// Codes by category:
//
//	VAL000         request validation failed (field errors listed separately)
//	NF001          session or sheet not found
//	DB001-DB007    constraint violations and connectivity
//	IMP001-IMP005  import pipeline (busy, payload size, cancelled, timeout, write failure)
//	RATE001        request throttled
//	ERR000         anything else; check the logs for the technical error
//
// Sentinel errors are matched with errors.Is first. Everything else falls
// through to case-insensitive substring patterns, first match wins, so
// specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	validationMessage = UserMessage{
		Message: "The upload payload is invalid",
		Action:  "Correct the listed fields and upload again",
		Code:    "VAL000",
	}
	notFoundMessage = UserMessage{
		Message: "The requested record does not exist",
		Action:  "Check the id; the session may have been deleted",
		Code:    "NF001",
	}
	busyMessage = UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}
	cancelledMessage = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP003",
	}
	deadlineMessage = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller export or check your connection",
		Code:    "IMP004",
	}
)

// sentinelMessages is consulted before pattern matching.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrNotFound, notFoundMessage},
	{ErrTooManyImports, busyMessage},
	{context.Canceled, cancelledMessage},
	{context.DeadlineExceeded, deadlineMessage},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Constraint violations
	{
		pattern: "import_sessions_fingerprint_key",
		msg: UserMessage{
			Message: "This content was imported concurrently by another upload",
			Action:  "Reload the session list; the existing import is kept",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Check the export for duplicated sheets",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates check constraint",
		msg: UserMessage{
			Message: "Sheet data is inconsistent",
			Action:  "Make sure every sheet lists its headers",
			Code:    "DB003",
		},
	},

	// Connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller export or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Import pipeline
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Upload exceeds the maximum payload size",
			Action:  "Split the export into smaller files",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import failed at",
		msg: UserMessage{
			Message: "The import could not be saved and was rolled back",
			Action:  "Nothing was stored; please try the upload again",
			Code:    "IMP005",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if IsValidationError(err) {
		return validationMessage
	}
	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
