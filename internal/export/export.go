package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// FileName returns subscription-tracker-export-YYYY-MM-DD.<ext>.
func FileName(now time.Time, f Format) string {
	return fmt.Sprintf("subscription-tracker-export-%s.%s", now.Format(core.DateLayout), f)
}

// Write renders subs in format f to w.
func Write(w io.Writer, f Format, subs []core.Subscription, now time.Time) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, NewDump(subs, now))
	case FormatCSV:
		return WriteCSV(w, subs)
	case FormatPDF:
		return WritePDF(w, subs, now)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteJSON encodes the dump with two-space indentation.
func WriteJSON(w io.Writer, d Dump) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(d); err != nil {
		return fmt.Errorf("error encoding JSON data: %w", err)
	}
	return nil
}

// ReadJSON decodes a dump, keeping amounts as exact decimal text.
func ReadJSON(r io.Reader) (Dump, error) {
	var d Dump
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return Dump{}, fmt.Errorf("error decoding JSON dump: %w", err)
	}
	return d, nil
}

// Domain converts every record of the dump.
func (d Dump) Domain() ([]core.Subscription, error) {
	out := make([]core.Subscription, 0, len(d.Subscriptions))
	for _, r := range d.Subscriptions {
		s, err := r.Subscription()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteCSV writes one row per subscription followed by the two totals.
func WriteCSV(w io.Writer, subs []core.Subscription) error {
	writer := csv.NewWriter(w)
	headers := []string{"Name", "Category", "Billing Frequency", "Amount", "Monthly Equivalent", "Start Date"}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, s := range subs {
		row := []string{
			s.Name,
			string(s.Category.Normalize()),
			string(s.Frequency),
			s.Amount.Decimal().StringFixed(2),
			analytics.MonthlyEquivalent(s).StringFixed(2),
			s.StartDate.String(),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	_ = writer.Write([]string{"Monthly Total", "", "", "", analytics.MonthlyTotal(subs).StringFixed(2), ""})
	_ = writer.Write([]string{"Annual Total", "", "", analytics.AnnualTotal(subs).StringFixed(2), "", ""})
	writer.Flush()
	return writer.Error()
}

// Exporter writes export files into a directory.
type Exporter struct {
	Dir string
	Now func() time.Time
}

func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir, Now: time.Now}
}

// Export writes subs to a new file and returns its absolute path.
func (e *Exporter) Export(subs []core.Subscription, f Format) (string, error) {
	now := e.Now()
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	path := filepath.Join(e.Dir, FileName(now, f))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating %s file: %w", f, err)
	}
	defer file.Close()

	if err := Write(file, f, subs, now); err != nil {
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("error closing %s file: %w", f, err)
	}
	return filepath.Abs(path)
}
