package core

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// utf8BOM is written by some Windows exporters ahead of the JSON document.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeImportRequest reads an upload payload. A leading UTF-8 byte order
// mark is skipped. Malformed JSON is reported as ValidationErrors so callers
// handle it like any other invalid request; read failures from r are wrapped
// and returned as-is.
func DecodeImportRequest(r io.Reader) (ImportRequest, error) {
	var req ImportRequest
	if err := json.NewDecoder(skipBOM(r)).Decode(&req); err != nil {
		if fe, ok := decodeFieldError(err); ok {
			return ImportRequest{}, ValidationErrors{fe}
		}
		return ImportRequest{}, fmt.Errorf("read payload: %w", err)
	}
	return req, nil
}

func decodeFieldError(err error) (FieldError, bool) {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		timeErr   *time.ParseError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return FieldError{Field: "body", Message: fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}, true
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return FieldError{Field: field, Message: fmt.Sprintf("must be %s", typeErr.Type.Kind())}, true
	case errors.As(err, &timeErr):
		return FieldError{Field: "metadata.exportedAt", Message: "must be an RFC 3339 timestamp"}, true
	case errors.Is(err, io.EOF):
		return FieldError{Field: "body", Message: "is empty"}, true
	case errors.Is(err, io.ErrUnexpectedEOF):
		return FieldError{Field: "body", Message: "is truncated"}, true
	default:
		return FieldError{}, false
	}
}

// skipBOM returns a reader over r without a leading UTF-8 BOM.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
