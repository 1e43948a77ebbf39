// Package workbook turns an .xlsx file into an import payload.
//
// Each visible worksheet becomes one sheet. The first row with any
// non-blank cell is the header row; every later non-blank row becomes a
// record keyed by those headers. Cells keep their spreadsheet type: numbers
// and booleans stay typed, blanks become null, everything else is the
// displayed text. Hidden worksheets are listed as excluded.
package workbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetvault/internal/core"
	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

// ReasonHidden is recorded for worksheets hidden in the workbook.
const ReasonHidden = "hidden"

// Options controls how a workbook is converted.
type Options struct {
	// FileName is stored on the session. ReadFile defaults it to the file's base name.
	FileName   string
	ImportedBy string
	// Exclude lists worksheet names to leave out.
	Exclude []string
	// IncludeHidden imports hidden worksheets instead of excluding them.
	IncludeHidden bool
	// Now stamps metadata.exportedAt. Defaults to time.Now.
	Now func() time.Time
}

// ReadFile opens path and converts it.
func ReadFile(path string, opts Options) (core.ImportRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.ImportRequest{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if opts.FileName == "" {
		opts.FileName = filepath.Base(path)
	}
	return Read(f, opts)
}

// Read converts the workbook in r.
func Read(r io.Reader, opts Options) (core.ImportRequest, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.ImportRequest{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	exportedAt := now().UTC()

	skip := lo.SliceToMap(opts.Exclude, func(name string) (string, struct{}) {
		return name, struct{}{}
	})

	var (
		sheets   []core.SheetPayload
		excluded []string
		reasons  = map[string]string{}
	)

	for _, name := range f.GetSheetList() {
		if _, ok := skip[name]; ok {
			excluded = append(excluded, name)
			continue
		}

		visible, err := f.GetSheetVisible(name)
		if err != nil {
			return core.ImportRequest{}, fmt.Errorf("sheet %q: %w", name, err)
		}
		if !visible && !opts.IncludeHidden {
			excluded = append(excluded, name)
			reasons[name] = ReasonHidden
			continue
		}

		sheet, err := readSheet(f, name)
		if err != nil {
			return core.ImportRequest{}, fmt.Errorf("sheet %q: %w", name, err)
		}
		sheets = append(sheets, sheet)
	}

	if len(reasons) == 0 {
		reasons = nil
	}

	return core.ImportRequest{
		FileName:   opts.FileName,
		ImportedBy: opts.ImportedBy,
		Metadata: core.ImportMetadata{
			ExportedAt:       &exportedAt,
			ExcludedSheets:   excluded,
			ExclusionReasons: reasons,
		},
		Sheets: core.NewSheetSet(sheets...),
	}, nil
}

// readSheet reads one worksheet. A sheet without any non-blank row has no
// headers and no data.
func readSheet(f *excelize.File, name string) (core.SheetPayload, error) {
	display, err := f.GetRows(name)
	if err != nil {
		return core.SheetPayload{}, err
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.SheetPayload{}, err
	}

	sheet := core.SheetPayload{Key: name, SheetName: name, Headers: []string{}, Data: []rowcodec.Row{}}

	headerAt := -1
	for i, row := range display {
		if !isBlank(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return sheet, nil
	}
	sheet.Headers = headerNames(display[headerAt])

	for i := headerAt + 1; i < len(display); i++ {
		if isBlank(display[i]) {
			continue
		}
		row := rowcodec.NewRow(len(sheet.Headers))
		for col, header := range sheet.Headers {
			value, err := cellValue(f, name, i, col, cellAt(display[i], col), cellAt(rowAt(raw, i), col))
			if err != nil {
				return core.SheetPayload{}, err
			}
			row.Set(header, value)
		}
		sheet.Data = append(sheet.Data, row)
	}
	return sheet, nil
}

// cellValue types one cell. rowIdx and col are zero-based.
func cellValue(f *excelize.File, sheet string, rowIdx, col int, display, raw string) (rowcodec.Value, error) {
	if strings.TrimSpace(display) == "" && strings.TrimSpace(raw) == "" {
		return rowcodec.Null(), nil
	}

	ref, err := excelize.CoordinatesToCellName(col+1, rowIdx+1)
	if err != nil {
		return rowcodec.Value{}, err
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return rowcodec.Value{}, fmt.Errorf("cell %s: %w", ref, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return rowcodec.String(display), nil
		}
		return rowcodec.Bool(b), nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return rowcodec.Number(n), nil
		}
		return rowcodec.String(display), nil
	default:
		return rowcodec.String(display), nil
	}
}

// headerNames trims header cells, names blank ones after their column and
// suffixes repeats so every header is unique.
func headerNames(cells []string) []string {
	last := len(cells)
	for last > 0 && strings.TrimSpace(cells[last-1]) == "" {
		last--
	}

	seen := make(map[string]int, last)
	out := make([]string, last)
	for i, cell := range cells[:last] {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		base := name
		if n := seen[base]; n > 0 {
			name = fmt.Sprintf("%s %d", base, n+1)
		}
		seen[base]++
		out[i] = name
	}
	return out
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func rowAt(rows [][]string, i int) []string {
	if i < len(rows) {
		return rows[i]
	}
	return nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}
