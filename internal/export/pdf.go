package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
)

// WritePDF renders a one-document spending report: totals, category
// breakdown and the subscription table.
func WritePDF(w io.Writer, subs []core.Subscription, now time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	headerColor := [3]int{40, 40, 40}
	headerTextColor := [3]int{255, 255, 255}
	bodyTextColor := [3]int{50, 50, 50}
	lineColor := [3]int{200, 200, 200}

	sectionTitle := func(title string) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.Cell(0, 8, title)
		pdf.Ln(7)
		pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
		pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+190, pdf.GetY())
		pdf.Ln(4)
	}

	pdf.AddPage()
	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(headerTextColor[0], headerTextColor[1], headerTextColor[2])
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, "  Subscription Spending Report", "", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	pdf.CellFormat(0, 8, fmt.Sprintf("  Generated on %s", now.Format("Jan 02, 2006")), "", 1, "L", true, 0, "")
	pdf.Ln(8)

	sectionTitle("Totals")
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(95, 12, core.FormatUSD(analytics.MonthlyTotal(subs))+" / month", "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 12, core.FormatUSD(analytics.AnnualTotal(subs))+" / year", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	if breakdown := analytics.CategoryBreakdown(subs); len(breakdown) > 0 {
		sectionTitle("By Category")
		pdf.SetFont("Arial", "", 10)
		for _, row := range breakdown {
			pdf.CellFormat(95, 6, tr(string(row.Category)), "", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, core.FormatUSD(row.Amount), "", 0, "R", false, 0, "")
			pdf.CellFormat(45, 6, row.Percentage.StringFixed(1)+"%", "", 1, "R", false, 0, "")
		}
		pdf.Ln(6)
	}

	sectionTitle("Subscriptions")
	widths := []float64{70, 40, 30, 25, 25}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Name", "Category", "Frequency", "Amount", "Started"} {
		pdf.CellFormat(widths[i], 7, h, "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, s := range subs {
		name := s.Name
		if r := []rune(name); len(r) > 40 {
			name = string(r[:37]) + "..."
		}
		cells := []string{
			tr(name),
			tr(string(s.Category.Normalize())),
			string(s.Frequency),
			core.FormatUSD(s.Amount.Decimal()),
			s.StartDate.String(),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error generating PDF: %w", err)
	}
	return nil
}
