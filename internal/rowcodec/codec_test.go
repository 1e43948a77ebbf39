package rowcodec

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_PreservesFieldOrder(t *testing.T) {
	row := RowOf("Name", "Acme", "Amount", 100, "Active", true, "Note", nil)

	got, err := Encode(row)
	require.NoError(t, err)
	assert.Equal(t, `{"Name":"Acme","Amount":100,"Active":true,"Note":null}`, got)
}

func TestEncode_KeepsHTMLCharacters(t *testing.T) {
	row := RowOf("R&D <team>", "AT&T <Corp>", "Quote", `say "hi"`+"\n")

	got, err := Encode(row)
	require.NoError(t, err)
	assert.Equal(t, `{"R&D <team>":"AT&T <Corp>","Quote":"say \"hi\"\n"}`, got)

	back := Decode(got)
	assert.True(t, back.Equal(row))
}

func TestEncode_InvalidUTF8(t *testing.T) {
	got, err := Encode(RowOf("Name", "a\xffb"))
	require.NoError(t, err)
	assert.Equal(t, "{\"Name\":\"a\uFFFDb\"}", got)
}

func TestEncode_RejectsNaN(t *testing.T) {
	row := NewRow(1)
	row.Set("x", Number(math.NaN()))

	_, err := Encode(row)
	require.Error(t, err)
}

func TestDecode_Canonical(t *testing.T) {
	row := Decode(`{"Name":"Acme","Amount":12.5,"Active":false,"Missing":null}`)

	require.Equal(t, 4, row.Len())
	assert.Equal(t, []string{"Name", "Amount", "Active", "Missing"}, row.Names())

	v, _ := row.Get("Name")
	assert.Equal(t, String("Acme"), v)
	v, _ = row.Get("Amount")
	assert.Equal(t, Number(12.5), v)
	v, _ = row.Get("Active")
	assert.Equal(t, Bool(false), v)
	v, _ = row.Get("Missing")
	assert.True(t, v.IsNull(), "canonical null must stay null")
}

func TestDecode_Legacy(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Value
	}{
		{"number with value", `{"f":{"kind":4,"value":12.5}}`, Number(12.5)},
		{"number without value", `{"f":{"kind":4}}`, Number(0)},
		{"number as string", `{"f":{"kind":4,"value":"7.25"}}`, Number(7.25)},
		{"string with value", `{"f":{"kind":3,"value":"Acme"}}`, String("Acme")},
		{"string without value", `{"f":{"kind":3}}`, String(NotAvailable)},
		{"string with null value", `{"f":{"kind":3,"value":null}}`, String(NotAvailable)},
		{"null", `{"f":{"kind":7}}`, String(NotAvailable)},
		{"undefined", `{"f":{"kind":0}}`, String(NotAvailable)},
		{"true", `{"f":{"kind":5}}`, Bool(true)},
		{"false", `{"f":{"kind":6}}`, Bool(false)},
		{"object kind", `{"f":{"kind":1,"value":{}}}`, String(NotAvailable)},
		{"array kind", `{"f":{"kind":2,"value":[]}}`, String(NotAvailable)},
		{"unknown kind", `{"f":{"kind":42}}`, String(NotAvailable)},
		{"value kind alias", `{"f":{"ValueKind":4,"Value":3}}`, Number(3)},
		{"untagged object", `{"f":{"foo":"bar"}}`, String(NotAvailable)},
		{"array", `{"f":[1,2]}`, String(NotAvailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Decode(tt.payload)
			got, ok := row.Get("f")
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %#v, want %#v", got, tt.want)
		})
	}
}

func TestDecode_MixedShapes(t *testing.T) {
	row := Decode(`{"Name":"Acme","Amount":{"kind":4,"value":100},"Flag":{"kind":5}}`)

	assert.Equal(t, map[string]any{"Name": "Acme", "Amount": 100.0, "Flag": true}, row.Map())
}

func TestDecode_MalformedYieldsEmptyRow(t *testing.T) {
	for _, payload := range []string{"", "not json", `{"a":`, `[1,2,3]`, `"text"`, `42`} {
		row := Decode(payload)
		assert.Equal(t, 0, row.Len(), "payload %q", payload)
	}
}

func TestDecode_RoundTripsEncode(t *testing.T) {
	row := RowOf("b", "x", "a", 1.5, "c", false)

	text, err := Encode(row)
	require.NoError(t, err)
	assert.True(t, row.Equal(Decode(text)))
}

func TestDecapitalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Name", "name"},
		{"Date Of Birth", "date Of Birth"},
		{"amount", "amount"},
		{"", ""},
		{"ÉTAT", "éTAT"},
		{"1st", "1st"},
	}
	for _, tt := range tests {
		if got := Decapitalize(tt.in); got != tt.want {
			t.Errorf("Decapitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecapitalizeHeaders(t *testing.T) {
	assert.Equal(t, []string{"name", "amount"}, DecapitalizeHeaders([]string{"Name", "Amount"}))
	assert.Equal(t, []string{}, DecapitalizeHeaders(nil))
}

func TestHeaders_EncodeDecode(t *testing.T) {
	text, err := EncodeHeaders([]string{"Name", "Amount"})
	require.NoError(t, err)
	assert.Equal(t, `["Name","Amount"]`, text)
	assert.Equal(t, []string{"Name", "Amount"}, DecodeHeaders(text))

	text, err = EncodeHeaders(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, text)

	assert.Equal(t, []string{}, DecodeHeaders("{broken"))
}

func TestDigest_Stable(t *testing.T) {
	a := Digest(`{"Name":"Acme"}`)
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest(`{"Name":"Acme"}`))
	assert.NotEqual(t, a, Digest(`{"Name":"Acme Inc"}`))
}

func TestRow_UnmarshalJSON(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{"z":1,"a":"x","m":null}`), &row))
	assert.Equal(t, []string{"z", "a", "m"}, row.Names())

	err := json.Unmarshal([]byte(`{"a":{"kind":4}}`), &row)
	require.ErrorIs(t, err, ErrNotScalar)

	require.Error(t, json.Unmarshal([]byte(`[1]`), &row))
}

func TestRow_SetKeepsPosition(t *testing.T) {
	row := RowOf("a", 1, "b", 2)
	row.Set("a", String("one"))

	assert.Equal(t, []string{"a", "b"}, row.Names())
	v, _ := row.Get("a")
	assert.Equal(t, String("one"), v)
}
