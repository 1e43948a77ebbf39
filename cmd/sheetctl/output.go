package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/JonMunkholm/sheetvault/internal/core"
	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func renderImportResult(w io.Writer, r *core.ImportResult) {
	if r.Duplicate {
		fmt.Fprintf(w, "already imported as session %s\n", r.SessionID)
		return
	}
	fmt.Fprintf(w, "imported session %s: %d sheets, %d rows, %d excluded in %dms\n",
		r.SessionID, r.ProcessedSheets, r.TotalRows, r.ExcludedSheets, r.ProcessingTime)
}

func renderSessions(w io.Writer, page core.Page[core.SessionSummary]) {
	table := newTable(w, "ID", "File", "Imported", "By", "Sheets", "Excluded", "Rows", "Status")
	for _, s := range page.Data {
		table.Append([]string{
			s.ID.String(),
			s.FileName,
			s.ImportedAt.Local().Format(timeLayout),
			s.ImportedBy,
			strconv.Itoa(s.ProcessedSheets),
			strconv.Itoa(s.ExcludedSheets),
			strconv.Itoa(s.TotalRows),
			s.Status,
		})
	}
	table.Render()
	renderPageFooter(w, page.CurrentPage, page.TotalPages, page.TotalRecords)
}

func renderSessionDetail(w io.Writer, d *core.SessionDetail) {
	fmt.Fprintf(w, "Session   %s\n", d.ID)
	fmt.Fprintf(w, "File      %s\n", d.FileName)
	fmt.Fprintf(w, "Imported  %s", d.ImportedAt.Local().Format(timeLayout))
	if d.ImportedBy != "" {
		fmt.Fprintf(w, " by %s", d.ImportedBy)
	}
	fmt.Fprintf(w, "\nRows      %d in %d sheets (%dms)\n\n", d.TotalRows, d.ProcessedSheets, d.ProcessingTime)

	table := newTable(w, "#", "Sheet ID", "Name", "Rows", "Columns")
	for _, s := range d.Sheets {
		table.Append([]string{
			strconv.Itoa(s.SheetIndex),
			s.ID.String(),
			s.SheetName,
			strconv.Itoa(s.RowCount),
			strconv.Itoa(s.ColumnCount),
		})
	}
	table.Render()

	if len(d.ExcludedSheetsList) > 0 {
		fmt.Fprintln(w, "\nExcluded:")
		for _, e := range d.ExcludedSheetsList {
			if e.ExclusionReason != nil {
				fmt.Fprintf(w, "  %s (%s)\n", e.SheetName, *e.ExclusionReason)
			} else {
				fmt.Fprintf(w, "  %s\n", e.SheetName)
			}
		}
	}
}

func renderSheet(w io.Writer, s *core.SheetDetail) {
	fmt.Fprintf(w, "%s: %d rows\n", s.SheetName, s.RowCount)
	table := newTable(w, s.Headers...)
	for _, row := range s.Data {
		table.Append(rowCells(row, s.Headers))
	}
	table.Render()
}

// rowCells lays out a row under headers. Fields missing from the row print empty.
func rowCells(row rowcodec.Row, headers []string) []string {
	cells := make([]string, len(headers))
	for i, h := range headers {
		if v, ok := row.Get(h); ok {
			cells[i] = v.Text()
		}
	}
	return cells
}

func renderSearch(w io.Writer, page core.Page[core.SearchResult]) {
	table := newTable(w, "File", "Sheet", "Row", "Data", "Imported")
	for _, r := range page.Data {
		data, _ := r.Data.MarshalJSON()
		table.Append([]string{
			r.FileName,
			r.SheetName,
			strconv.Itoa(r.RowIndex),
			truncate(string(data), 80),
			r.ImportedAt.Local().Format(timeLayout),
		})
	}
	table.Render()
	renderPageFooter(w, page.CurrentPage, page.TotalPages, page.TotalRecords)
}

func renderProcessingErrors(w io.Writer, errs []core.ProcessingErrorInfo) {
	if len(errs) == 0 {
		fmt.Fprintln(w, "no processing errors")
		return
	}
	table := newTable(w, "When", "Type", "Sheet", "Message")
	for _, e := range errs {
		table.Append([]string{
			e.CreatedAt.Local().Format(time.RFC3339),
			e.ErrorType,
			e.SheetName,
			e.ErrorMessage,
		})
	}
	table.Render()
}

func renderPageFooter(w io.Writer, page, totalPages int, total int64) {
	fmt.Fprintf(w, "page %d of %d (%d total)\n", page, max(totalPages, 1), total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
