package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subtrack/internal/core"
)

func sampleSubs() []core.Subscription {
	created := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	return []core.Subscription{
		{
			ID: "a1", UserID: "u1", Name: "Spotify", Amount: core.Money{Cents: 1200},
			Frequency: core.Monthly, StartDate: core.NewDate(2024, 1, 10), Category: core.Music,
			CreatedAt: created, UpdatedAt: created,
		},
		{
			ID: "b2", UserID: "u1", Name: "Prime", Amount: core.Money{Cents: 12000},
			Frequency: core.Annually, StartDate: core.NewDate(2024, 3, 5), Category: core.Shopping,
			CreatedAt: created, UpdatedAt: created,
		},
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2025, 7, 4, 23, 0, 0, 0, time.UTC)
	if got := FileName(now, FormatJSON); got != "subscription-tracker-export-2025-07-04.json" {
		t.Errorf("FileName() = %q", got)
	}
	if got := FileName(now, FormatCSV); got != "subscription-tracker-export-2025-07-04.csv" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestWriteJSONShape(t *testing.T) {
	now := time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, NewDump(sampleSubs(), now)); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`"exportDate": "2025-07-04T12:00:00Z"`,
		`"billing_frequency": "monthly"`,
		`"start_date": "2024-01-10"`,
		`"amount": 12.00`,
		`"user_id": "u1"`,
		"\n  \"subscriptions\": [",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %s\n%s", want, out)
		}
	}
}

func TestReadJSONRestoresSubscriptions(t *testing.T) {
	now := time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := WriteJSON(&buf, NewDump(sampleSubs(), now)); err != nil {
		t.Fatal(err)
	}
	dump, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	subs, err := dump.Domain()
	if err != nil {
		t.Fatalf("Domain() error = %v", err)
	}
	want := sampleSubs()
	if len(subs) != len(want) {
		t.Fatalf("got %d subscriptions", len(subs))
	}
	for i := range want {
		if subs[i] != want[i] {
			t.Errorf("subscription %d = %+v, want %+v", i, subs[i], want[i])
		}
	}
}

func TestReadJSONFromMobileExport(t *testing.T) {
	doc := `{
  "exportDate": "2025-01-02T10:11:12.345Z",
  "subscriptions": [
    {"id": "x", "user_id": "u", "name": "Netflix", "amount": 15.49,
     "billing_frequency": "monthly", "start_date": "2024-06-01T00:00:00+00:00",
     "category": "Entertainment", "created_at": "2024-06-01T08:00:00.123456+00:00",
     "updated_at": "2024-06-01T08:00:00.123456+00:00"}
  ]
}`
	dump, err := ReadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	subs, err := dump.Domain()
	if err != nil {
		t.Fatalf("Domain() error = %v", err)
	}
	if subs[0].Amount.Cents != 1549 || subs[0].StartDate != core.NewDate(2024, 6, 1) {
		t.Errorf("got %+v", subs[0])
	}
	if subs[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}
}

func TestRecordRejectsUnknownCategory(t *testing.T) {
	r := Record{ID: "x", Amount: "1", BillingFrequency: "monthly", StartDate: "2024-01-01", Category: "Pets"}
	if _, err := r.Subscription(); !core.IsValidationError(err) {
		t.Errorf("Subscription() error = %v, want validation error", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSubs()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[2][4] != "10.00" {
		t.Errorf("annual monthly equivalent = %q", rows[2][4])
	}
	if rows[3][4] != "22.00" || rows[4][3] != "264.00" {
		t.Errorf("totals rows = %v / %v", rows[3], rows[4])
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, sampleSubs(), time.Now()); err != nil {
		t.Fatalf("WritePDF() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF document")
	}
}

func TestExporterWritesFile(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir)
	e.Now = func() time.Time { return time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC) }

	path, err := e.Export(sampleSubs(), FormatJSON)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Base(path) != "subscription-tracker-export-2025-02-03.json" {
		t.Errorf("path = %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "CSV": FormatCSV, "pdf": FormatPDF} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
