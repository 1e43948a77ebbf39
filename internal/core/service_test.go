package core

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetvault/internal/rowcodec"
)

// tickingClock returns a clock that advances by step on every call.
func tickingClock(start time.Time, step time.Duration) func() time.Time {
	var (
		mu  sync.Mutex
		now = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

func newTestService(t *testing.T, opts Options) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := NewService(store, opts)
	svc.now = tickingClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	return svc, store
}

func exportedAt() *time.Time {
	t := time.Date(2024, 2, 29, 17, 30, 0, 0, time.UTC)
	return &t
}

// sheet builds a payload sheet whose rows are name/value pair lists.
func sheet(name string, headers []string, rows ...[]any) SheetPayload {
	data := make([]rowcodec.Row, len(rows))
	for i, pairs := range rows {
		data[i] = rowcodec.RowOf(pairs...)
	}
	return SheetPayload{Key: name, SheetName: name, Headers: headers, Data: data}
}

func request(fileName string, excluded []string, sheets ...SheetPayload) ImportRequest {
	return ImportRequest{
		FileName: fileName,
		Metadata: ImportMetadata{
			ExportedAt:     exportedAt(),
			ExcludedSheets: excluded,
		},
		Sheets: NewSheetSet(sheets...),
	}
}

// numberedRows returns n rows with a unique "Id" and the given label.
func numberedRows(n int, label string) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{"Id", i, "Label", label}
	}
	return rows
}

func repeat(s string, n int) string { return strings.Repeat(s, n) }
