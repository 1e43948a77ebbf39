package rowcodec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Field is a single named value within a Row.
type Field struct {
	Name  string
	Value Value
}

// Row is an ordered field -> value mapping. Fields keep the order in which
// they were first set. The zero Row is empty and ready to use.
type Row struct {
	fields []Field
	index  map[string]int
}

// NewRow returns an empty row with room for n fields.
func NewRow(n int) Row {
	return Row{
		fields: make([]Field, 0, n),
		index:  make(map[string]int, n),
	}
}

// RowOf builds a row from alternating name/value pairs. It is mostly a
// convenience for tests and fixtures.
func RowOf(pairs ...any) Row {
	r := NewRow(len(pairs) / 2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		r.Set(name, ValueOf(pairs[i+1]))
	}
	return r
}

// ValueOf converts a plain Go scalar into a Value. Unsupported types become null.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	default:
		return Null()
	}
}

// Set assigns value to name. An existing field keeps its position.
func (r *Row) Set(name string, value Value) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (r Row) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

// Len returns the number of fields.
func (r Row) Len() int { return len(r.fields) }

// Fields returns the fields in order. The slice must not be modified.
func (r Row) Fields() []Field { return r.fields }

// Names returns the field names in order.
func (r Row) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Map returns the row as an unordered map of plain Go values.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		m[f.Name] = f.Value.Interface()
	}
	return m
}

// Equal reports whether both rows hold the same fields in the same order.
func (r Row) Equal(o Row) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != o.fields[i].Name || !r.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the row as a JSON object in field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := quote(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrNotScalar is returned when an inbound row carries a nested object or array.
var ErrNotScalar = errors.New("value must be a string, number, boolean or null")

// UnmarshalJSON strictly parses an inbound row. Unlike Decode it rejects
// anything but an object of scalars.
func (r *Row) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("row is not valid JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return errors.New("row must be a JSON object")
	}

	out := NewRow(8)
	var fieldErr error
	res.ForEach(func(key, val gjson.Result) bool {
		v, ok := scalarValue(val)
		if !ok {
			fieldErr = fmt.Errorf("field %q: %w", key.String(), ErrNotScalar)
			return false
		}
		out.Set(key.String(), v)
		return true
	})
	if fieldErr != nil {
		return fieldErr
	}

	*r = out
	return nil
}

// scalarValue converts a scalar gjson result. ok is false for objects and arrays.
func scalarValue(v gjson.Result) (Value, bool) {
	switch v.Type {
	case gjson.Null:
		return Null(), true
	case gjson.String:
		return String(v.Str), true
	case gjson.Number:
		return Number(v.Num), true
	case gjson.True:
		return Bool(true), true
	case gjson.False:
		return Bool(false), true
	default:
		return Value{}, false
	}
}
