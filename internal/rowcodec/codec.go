// Package rowcodec encodes and decodes the persisted JSON form of a sheet row.
//
// Rows are written in the canonical encoding: a flat JSON object of
// field -> scalar. Rows written by the previous generation of the exporter
// use a tagged encoding where each value is an object carrying an integer
// kind discriminator and an optional raw value:
//
//	{"Name": {"kind": 3, "value": "Acme"}, "Amount": {"kind": 4, "value": 100}}
//
// Decode accepts both shapes, field by field, and never fails: a payload
// that cannot be parsed decodes to an empty row.
package rowcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// NotAvailable is substituted for legacy values whose payload is missing,
// null or of an unsupported kind.
const NotAvailable = "N/A"

// LegacyKind is the discriminator used by the tagged row encoding.
type LegacyKind int

const (
	LegacyUndefined LegacyKind = iota
	LegacyObject
	LegacyArray
	LegacyString
	LegacyNumber
	LegacyTrue
	LegacyFalse
	LegacyNull
)

// Encode serializes a row in the canonical encoding.
func Encode(r Row) (string, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored row payload in either encoding.
func Decode(text string) Row {
	if !gjson.Valid(text) {
		return Row{}
	}
	res := gjson.Parse(text)
	if !res.IsObject() {
		return Row{}
	}

	row := NewRow(8)
	res.ForEach(func(key, val gjson.Result) bool {
		row.Set(key.String(), decodeValue(val))
		return true
	})
	return row
}

func decodeValue(v gjson.Result) Value {
	if s, ok := scalarValue(v); ok {
		return s
	}
	if v.IsObject() {
		if kind, raw, ok := legacyTag(v); ok {
			return decodeLegacy(kind, raw)
		}
	}
	return String(NotAvailable)
}

// legacyTag extracts the discriminator and raw value from a tagged value.
// Key matching is case-insensitive; "valueKind" is accepted as an alias of "kind".
func legacyTag(obj gjson.Result) (LegacyKind, gjson.Result, bool) {
	var (
		kind  LegacyKind
		found bool
		raw   gjson.Result
	)
	obj.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		switch {
		case strings.EqualFold(name, "kind") || strings.EqualFold(name, "valueKind"):
			if val.Type == gjson.Number && val.Num == float64(int64(val.Num)) {
				kind = LegacyKind(val.Int())
				found = true
			}
		case strings.EqualFold(name, "value"):
			raw = val
		}
		return true
	})
	return kind, raw, found
}

func decodeLegacy(kind LegacyKind, raw gjson.Result) Value {
	switch kind {
	case LegacyString:
		if !raw.Exists() || raw.Type == gjson.Null {
			return String(NotAvailable)
		}
		return String(raw.String())
	case LegacyNumber:
		switch raw.Type {
		case gjson.Number:
			return Number(raw.Num)
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw.Str), 64); err == nil {
				return Number(f)
			}
		}
		return Number(0)
	case LegacyTrue:
		return Bool(true)
	case LegacyFalse:
		return Bool(false)
	default:
		return String(NotAvailable)
	}
}

// Digest returns the hex SHA-256 of a stored payload. It is kept next to the
// payload for auditing and is not consulted when reading or writing.
func Digest(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// EncodeHeaders serializes a header list as a JSON array.
func EncodeHeaders(headers []string) (string, error) {
	if headers == nil {
		headers = []string{}
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeHeaders parses a stored header list. Malformed input yields an empty list.
func DecodeHeaders(text string) []string {
	var headers []string
	if err := json.Unmarshal([]byte(text), &headers); err != nil || headers == nil {
		return []string{}
	}
	return headers
}

// Decapitalize lower-cases the first character of s and leaves the rest untouched.
func Decapitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	lower := unicode.ToLower(r)
	if lower == r {
		return s
	}
	return string(lower) + s[size:]
}

// DecapitalizeHeaders applies Decapitalize to every header.
func DecapitalizeHeaders(headers []string) []string {
	return lo.Map(headers, func(h string, _ int) string {
		return Decapitalize(h)
	})
}
