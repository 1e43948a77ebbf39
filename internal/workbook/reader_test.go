package workbook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetvault/internal/core"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func buildWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.SetSheetName("Sheet1", "Customers"))
	set := func(sheet, cell string, v any) {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}

	// Leading blank row, then headers with a gap and a repeat.
	set("Customers", "A2", "Name")
	set("Customers", "B2", " Amount ")
	set("Customers", "D2", "Name")
	set("Customers", "C2", "")
	set("Customers", "A3", "Acme")
	set("Customers", "B3", 100)
	set("Customers", "D3", true)
	// Blank row 4 is skipped.
	set("Customers", "A5", "Beta")
	set("Customers", "B5", 7.5)
	set("Customers", "C5", "note")

	_, err := f.NewSheet("Notes")
	require.NoError(t, err)
	set("Notes", "A1", "Text")
	set("Notes", "A2", "internal")

	_, err = f.NewSheet("Secret")
	require.NoError(t, err)
	set("Secret", "A1", "Key")
	require.NoError(t, f.SetSheetVisible("Secret", false))

	_, err = f.NewSheet("Blank")
	require.NoError(t, err)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestRead(t *testing.T) {
	req, err := Read(buildWorkbook(t), Options{
		FileName:   "customers.xlsx",
		ImportedBy: "cli",
		Exclude:    []string{"Notes"},
		Now:        func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	assert.Equal(t, "customers.xlsx", req.FileName)
	assert.Equal(t, "cli", req.ImportedBy)
	require.NotNil(t, req.Metadata.ExportedAt)
	assert.Equal(t, fixedNow, *req.Metadata.ExportedAt)
	assert.Equal(t, []string{"Notes", "Secret"}, req.Metadata.ExcludedSheets)
	assert.Equal(t, map[string]string{"Secret": ReasonHidden}, req.Metadata.ExclusionReasons)

	sheets := req.Sheets.All()
	require.Len(t, sheets, 2)
	assert.Equal(t, "Customers", sheets[0].Name())
	assert.Equal(t, []string{"Name", "Amount", "Column 3", "Name 2"}, sheets[0].Headers)
	require.Len(t, sheets[0].Data, 2)

	assert.Equal(t, map[string]any{
		"Name":     "Acme",
		"Amount":   100.0,
		"Column 3": nil,
		"Name 2":   true,
	}, sheets[0].Data[0].Map())
	assert.Equal(t, []string{"Name", "Amount", "Column 3", "Name 2"}, sheets[0].Data[0].Names())

	assert.Equal(t, map[string]any{
		"Name":     "Beta",
		"Amount":   7.5,
		"Column 3": "note",
		"Name 2":   nil,
	}, sheets[0].Data[1].Map())

	assert.Equal(t, "Blank", sheets[1].Name())
	assert.Empty(t, sheets[1].Headers)
	assert.Empty(t, sheets[1].Data)

	assert.NoError(t, core.ValidateImportRequest(req))
}

func TestRead_IncludeHidden(t *testing.T) {
	req, err := Read(buildWorkbook(t), Options{FileName: "x.xlsx", IncludeHidden: true})
	require.NoError(t, err)

	names := make([]string, 0, req.Sheets.Len())
	for _, s := range req.Sheets.All() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Customers", "Notes", "Secret", "Blank"}, names)
	assert.Empty(t, req.Metadata.ExcludedSheets)
	assert.Nil(t, req.Metadata.ExclusionReasons)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, os.WriteFile(path, buildWorkbook(t).Bytes(), 0o600))

	req, err := ReadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "export.xlsx", req.FileName)
	assert.NotNil(t, req.Metadata.ExportedAt)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xlsx"), Options{})
	assert.Error(t, err)
}

func TestRead_NotAWorkbook(t *testing.T) {
	_, err := Read(bytes.NewBufferString("name,amount\nacme,1\n"), Options{})
	assert.Error(t, err)
}

func TestHeaderNames(t *testing.T) {
	assert.Equal(t, []string{"A", "Column 2", "A 2", "A 3"}, headerNames([]string{" A", "", "A", "A", " ", ""}))
	assert.Empty(t, headerNames(nil))
}
