package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// fakeSheets serves the handful of Sheets API calls the client makes
// against an in-memory grid.
type fakeSheets struct {
	mu       sync.Mutex
	rows     [][]string
	sheetID  int64
	batches  []string
	appended int
}

var rowRange = regexp.MustCompile(`^A(\d+):I(\d+)$`)

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		raw := readBody(r)
		f.batches = append(f.batches, raw)
		json.Unmarshal([]byte(raw), &req)
		for _, rq := range req.Requests {
			d := rq.DeleteDimension.Range
			f.rows = append(f.rows[:d.StartIndex], f.rows[d.EndIndex:]...)
		}
		writeJSON(w, gsheet.BatchUpdateSpreadsheetResponse{})
	case strings.Contains(path, "/values/"):
		cells := path[strings.Index(path, "!")+1:]
		switch {
		case strings.HasSuffix(cells, ":append"):
			for _, row := range decodeValues(r) {
				f.rows = append(f.rows, row)
				f.appended++
			}
			writeJSON(w, gsheet.AppendValuesResponse{})
		case r.Method == http.MethodPut:
			m := rowRange.FindStringSubmatch(cells)
			n, _ := strconv.Atoi(m[1])
			for len(f.rows) < n {
				f.rows = append(f.rows, nil)
			}
			f.rows[n-1] = decodeValues(r)[0]
			writeJSON(w, gsheet.UpdateValuesResponse{})
		default:
			var rows [][]string
			if m := rowRange.FindStringSubmatch(cells); m != nil {
				n, _ := strconv.Atoi(m[1])
				if n <= len(f.rows) && len(f.rows[n-1]) > 0 {
					rows = [][]string{f.rows[n-1]}
				}
			} else {
				rows = f.rows
			}
			vr := gsheet.ValueRange{}
			for _, row := range rows {
				vr.Values = append(vr.Values, toCells(row))
			}
			writeJSON(w, vr)
		}
	default:
		writeJSON(w, gsheet.Spreadsheet{Sheets: []*gsheet.Sheet{
			{Properties: &gsheet.SheetProperties{SheetId: 99, Title: "Other"}},
			{Properties: &gsheet.SheetProperties{SheetId: f.sheetID, Title: "Transactions"}},
		}})
	}
}

func readBody(r *http.Request) string {
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := r.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

func decodeValues(r *http.Request) [][]string {
	var vr gsheet.ValueRange
	json.Unmarshal([]byte(readBody(r)), &vr)
	out := make([][]string, 0, len(vr.Values))
	for _, row := range vr.Values {
		out = append(out, toStrings(row))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(), "sheet-id", "Transactions",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return c, fake
}

func txn(id, amount string, updated time.Time) core.Transaction {
	return core.Transaction{
		ID:        id,
		Owner:     "u1",
		Title:     "Train " + id,
		Amount:    decimal.RequireFromString(amount),
		Type:      core.TypeExpense,
		Category:  core.CategoryTransportation,
		Date:      time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestClientEnsureHeader(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.EnsureHeader(ctx); err != nil {
			t.Fatalf("EnsureHeader: %v", err)
		}
	}
	if len(fake.rows) != 1 || fake.rows[0][0] != "ID" || len(fake.rows[0]) != len(sheets.Header) {
		t.Fatalf("rows = %v", fake.rows)
	}
}

func TestClientUpsertAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	t0 := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	if err := c.EnsureHeader(ctx); err != nil {
		t.Fatal(err)
	}
	for _, tx := range []core.Transaction{txn("a", "4", t0), txn("b", "6", t0), txn("a", "4.5", t0.Add(time.Minute))} {
		if err := c.Upsert(ctx, tx); err != nil {
			t.Fatalf("Upsert(%s): %v", tx.ID, err)
		}
	}

	if fake.appended != 2 {
		t.Errorf("appended = %d, want 2", fake.appended)
	}
	if len(fake.rows) != 3 {
		t.Fatalf("rows = %v", fake.rows)
	}
	if got := fake.rows[1]; got[0] != "a" || got[5] != "4.50" {
		t.Errorf("row a = %v", got)
	}
}

func TestClientUpsertSkipsStaleSnapshot(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	t0 := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	c.Upsert(ctx, txn("a", "8", t0.Add(time.Hour)))
	if err := c.Upsert(ctx, txn("a", "1", t0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got := fake.rows[0][5]; got != "8.00" {
		t.Fatalf("amount = %s, want 8.00", got)
	}
}

func TestClientRemove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	c.EnsureHeader(ctx)
	c.Upsert(ctx, txn("a", "1", now))
	c.Upsert(ctx, txn("b", "2", now))

	if err := c.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(fake.rows) != 2 || fake.rows[1][0] != "b" {
		t.Fatalf("rows = %v", fake.rows)
	}
	if len(fake.batches) != 1 {
		t.Fatalf("batch updates = %d, want 1", len(fake.batches))
	}
	body := fake.batches[0]
	for _, want := range []string{`"sheetId":0`, `"startIndex":1`, `"endIndex":2`, `"dimension":"ROWS"`} {
		if !strings.Contains(body, want) {
			t.Errorf("batch body %s missing %s", body, want)
		}
	}

	if err := c.Remove(ctx, "missing"); err != nil {
		t.Fatalf("Remove of a missing row: %v", err)
	}
	if len(fake.batches) != 1 {
		t.Error("removing a missing row should not call the API")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no spreadsheet", Config{}, "missing spreadsheet id"},
		{"no credentials", Config{SpreadsheetID: "x"}, "missing service account credentials"},
		{"unreadable file", Config{SpreadsheetID: "x", CredentialsFile: "/nonexistent/creds.json"}, "read service account file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRangeNaming(t *testing.T) {
	c := &Client{sheet: "Transactions"}
	if got := c.rng(fmt.Sprintf("A%d:I%d", 3, 3)); got != "Transactions!A3:I3" {
		t.Errorf("rng = %s", got)
	}
}
