package rowcodec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// textJSON leaves &, < and > unescaped so a stored payload contains the
// same characters a user searches for.
var textJSON = jsoniter.Config{EscapeHTML: false}.Froze()

// quote encodes s as a JSON string. Invalid UTF-8 becomes U+FFFD.
func quote(s string) ([]byte, error) {
	return textJSON.Marshal(strings.ToValidUTF8(s, "\uFFFD"))
}

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a single cell value: a string, a number, a boolean or null.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the null Value.
func Null() Value { return Value{} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Float returns the numeric payload and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the boolean payload and whether v is a boolean.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// Interface returns v as a plain Go value (string, float64, bool or nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Text renders v for display: numbers without trailing zeros, null as "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return quote(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("rowcodec: unsupported number %v", v.num)
		}
		return json.Marshal(v.num)
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (v Value) GoString() string {
	if v.kind == KindNull {
		return "rowcodec.Null()"
	}
	return fmt.Sprintf("rowcodec.%s(%s)", v.kind, v.Text())
}
