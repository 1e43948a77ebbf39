// Package fingerprint computes the content digest used to recognise a
// re-upload of an identical export.
//
// The digest covers sheet names, headers and row data only. File names,
// uploader and export metadata never contribute, so the same workbook
// exported twice under different names produces the same fingerprint.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

// canonical sorts object keys so that maps serialize deterministically.
var canonical = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Sheet is the subset of a sheet that participates in the digest.
type Sheet struct {
	Name    string
	Headers []string
	Rows    []rowcodec.Row
}

// Compute returns the hex SHA-256 of the canonical serialization of sheets.
// Sheet order and field order within rows do not affect the result. Sheets
// sharing a name are ordered by their serialized content.
func Compute(sheets []Sheet) (string, error) {
	type encoded struct {
		name string
		body []byte
	}

	parts := make([]encoded, 0, len(sheets))
	for _, s := range sheets {
		headers := s.Headers
		if headers == nil {
			headers = []string{}
		}
		data := make([]map[string]any, len(s.Rows))
		for i, r := range s.Rows {
			data[i] = r.Map()
		}
		b, err := canonical.Marshal(map[string]any{
			"sheetName": s.Name,
			"headers":   headers,
			"data":      data,
		})
		if err != nil {
			return "", fmt.Errorf("serialize sheet %q: %w", s.Name, err)
		}
		parts = append(parts, encoded{name: s.Name, body: b})
	}

	sort.Slice(parts, func(i, j int) bool {
		if parts[i].name != parts[j].name {
			return parts[i].name < parts[j].name
		}
		return bytes.Compare(parts[i].body, parts[j].body) < 0
	})

	h := sha256.New()
	h.Write([]byte{'['})
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{','})
		}
		h.Write(p.body)
	}
	h.Write([]byte{']'})
	return hex.EncodeToString(h.Sum(nil)), nil
}
