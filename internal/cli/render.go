package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
	"subtrack/internal/notify"
)

const barWidth = 40

var (
	boldCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	boldRed    = color.New(color.FgRed, color.Bold).SprintFunc()
)

func (a *App) print(s string) {
	fmt.Fprintln(a.out, s)
}

func (a *App) info(format string, args ...any) {
	fmt.Fprint(a.out, pterm.Info.Sprintfln(format, args...))
}

func (a *App) success(format string, args ...any) {
	fmt.Fprint(a.out, pterm.Success.Sprintfln(format, args...))
}

func usd(d decimal.Decimal) string {
	return core.FormatUSD(d)
}

func renderSubscriptions(subs []core.Subscription, now time.Time) string {
	data := pterm.TableData{{"ID", "Name", "Amount", "Billing", "Monthly", "Category", "Next renewal"}}
	for _, s := range subs {
		next := "-"
		if d, ok := analytics.NextRenewal(s, now); ok {
			next = d.String()
		}
		data = append(data, []string{
			s.ID,
			s.Name,
			usd(s.Amount.Decimal()),
			string(s.Frequency),
			usd(analytics.MonthlyEquivalent(s)),
			string(s.Category.Normalize()),
			next,
		})
	}
	table, _ := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	return table
}

func renderSummary(sum analytics.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Monthly: %s\nAnnual:  %s\nActive:  %d\n",
		boldCyan(usd(sum.MonthlyTotal)), boldCyan(usd(sum.AnnualTotal)), sum.Count)

	if len(sum.Categories) > 0 {
		data := pterm.TableData{{"Category", "Monthly", "Share"}}
		for _, c := range sum.Categories {
			data = append(data, []string{
				string(c.Category),
				usd(c.Amount),
				c.Percentage.StringFixed(1) + "%",
			})
		}
		table, _ := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		b.WriteString("\n")
		b.WriteString(table)
	}

	if len(sum.Upcoming) > 0 {
		b.WriteString("\n\n")
		b.WriteString(renderRenewals(sum.Upcoming))
	}

	return pterm.DefaultBox.WithTitle("Subscription Summary").
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).Sprint(b.String())
}

func renderRenewals(renewals []analytics.Renewal) string {
	data := pterm.TableData{{"Renews on", "Name", "Amount", "In"}}
	for _, r := range renewals {
		in := fmt.Sprintf("%d days", r.DaysUntil)
		switch r.DaysUntil {
		case 0:
			in = boldRed("today")
		case 1:
			in = boldYellow("tomorrow")
		}
		data = append(data, []string{
			r.RenewsOn.String(),
			r.Subscription.Name,
			usd(r.Subscription.Amount.Decimal()),
			in,
		})
	}
	table, _ := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	return table
}

func renderTrend(points []analytics.MonthPoint) string {
	peak := decimal.Zero
	for _, p := range points {
		if p.Total.GreaterThan(peak) {
			peak = p.Total
		}
	}
	if peak.IsZero() {
		return pterm.Warning.Sprintln("All months total $0.00 for this period")
	}

	data := pterm.TableData{{"Month", "Total", "", "MoM Change"}}
	for i, p := range points {
		n := int(p.Total.Div(peak).Mul(decimal.NewFromInt(barWidth)).IntPart())
		bar := pterm.FgBlue.Sprint(strings.Repeat("█", n))
		change := ""
		if i > 0 {
			bar, change = momChange(points[i-1].Total, p.Total, strings.Repeat("█", n))
		}
		data = append(data, []string{p.Label, usd(p.Total), bar, change})
	}
	table, _ := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	return pterm.DefaultBox.WithTitle("Monthly Spend Trend").
		WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).Sprint(table)
}

// momChange colours the bar by direction of the month-over-month change.
func momChange(prev, cur decimal.Decimal, bar string) (string, string) {
	if prev.IsZero() {
		if cur.IsZero() {
			return pterm.FgYellow.Sprint(bar), pterm.FgYellow.Sprint("0%")
		}
		return pterm.FgRed.Sprint(bar), pterm.FgRed.Sprint("N/A")
	}
	pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	switch {
	case pct.GreaterThan(decimal.Zero):
		return pterm.FgRed.Sprint(bar), pterm.FgRed.Sprintf("⬆ %s%%", pct.StringFixed(1))
	case pct.LessThan(decimal.Zero):
		return pterm.FgGreen.Sprint(bar), pterm.FgGreen.Sprintf("⬇ %s%%", pct.Abs().StringFixed(1))
	default:
		return pterm.FgYellow.Sprint(bar), pterm.FgYellow.Sprint("➡ 0.0%")
	}
}

func renderReminders(reminders []notify.Reminder) string {
	data := pterm.TableData{{"ID", "Subscription", "Notify at", "Renews on", "Message"}}
	for _, r := range reminders {
		data = append(data, []string{
			r.ID,
			r.SubscriptionID,
			r.NotifyAt.UTC().Format(time.RFC3339),
			r.RenewsOn.String(),
			r.Body,
		})
	}
	table, _ := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	return table
}
