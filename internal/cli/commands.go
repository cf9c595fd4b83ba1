package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
	"subtrack/internal/export"
	"subtrack/internal/preferences"
)

func (a *App) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List subscriptions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := a.deps.Subscriptions.List(cmd.Context(), a.user())
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				a.info("No subscriptions yet. Add one with: subtrack-cli add --name Netflix --amount 15.99")
				return nil
			}
			a.print(renderSubscriptions(subs, a.now()))
			return nil
		},
	}
}

func (a *App) addCmd() *cobra.Command {
	var name, amount, frequency, start, category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := buildSubscription(name, amount, frequency, start, category, a.now())
			if err != nil {
				return err
			}
			sub.UserID = a.user()

			created, err := a.deps.Subscriptions.Create(cmd.Context(), sub)
			if err != nil {
				return err
			}
			a.success("Added %s (%s, %s) id=%s", created.Name,
				core.FormatUSD(created.Amount.Decimal()), created.Frequency, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Subscription name (required)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount charged per billing period, e.g. 15.99 (required)")
	cmd.Flags().StringVarP(&frequency, "frequency", "f", string(core.Monthly), "Billing frequency: monthly or annually")
	cmd.Flags().StringVarP(&start, "start", "s", "", "Start date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVarP(&category, "category", "c", string(core.Other), "Category: "+categoryNames())
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func buildSubscription(name, amount, frequency, start, category string, now time.Time) (core.Subscription, error) {
	money, err := core.ParseAmount(amount)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	freq, err := core.ParseBillingFrequency(frequency)
	if err != nil {
		return core.Subscription{}, err
	}
	cat, err := core.ParseCategory(category)
	if err != nil {
		return core.Subscription{}, err
	}
	startDate := core.DateOf(now)
	if strings.TrimSpace(start) != "" {
		if startDate, err = core.ParseDate(start); err != nil {
			return core.Subscription{}, err
		}
	}
	return core.Subscription{
		Name:      strings.TrimSpace(name),
		Amount:    money,
		Frequency: freq,
		StartDate: startDate,
		Category:  cat,
	}, nil
}

func categoryNames() string {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a subscription and cancel its reminders",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.deps.Subscriptions.Delete(cmd.Context(), a.user(), args[0]); err != nil {
				return err
			}
			a.success("Deleted subscription %s", args[0])
			return nil
		},
	}
}

func (a *App) windowFlag(cmd *cobra.Command, days *int) {
	cmd.Flags().IntVarP(days, "days", "d", -1, "Renewal lookahead in days (default: configured window)")
}

func (a *App) window(days int) int {
	if days >= 0 {
		return days
	}
	if a.deps.WindowDays > 0 {
		return a.deps.WindowDays
	}
	return analytics.DefaultRenewalWindowDays
}

func (a *App) summaryCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show monthly and annual totals with the category breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.deps.Subscriptions.Summary(cmd.Context(), a.user(), a.window(days))
			if err != nil {
				return err
			}
			a.print(renderSummary(summary))
			return nil
		},
	}
	a.windowFlag(cmd, &days)
	return cmd
}

func (a *App) trendCmd() *cobra.Command {
	var rangeFlag string
	var historical bool
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show monthly spend over the last 3, 6 or 12 months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := analytics.ParseTimeRange(rangeFlag)
			if err != nil {
				return err
			}
			subs, err := a.deps.Subscriptions.List(cmd.Context(), a.user())
			if err != nil {
				return err
			}
			series := analytics.MonthlySeries
			if historical {
				series = analytics.HistoricalSeries
			}
			a.print(renderTrend(series(subs, tr.Months(), a.now())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&rangeFlag, "range", "r", string(analytics.DefaultTimeRange), "Time range: 3m, 6m or 1y")
	cmd.Flags().BoolVar(&historical, "historical", false, "Only count subscriptions started by each month")
	return cmd
}

func (a *App) renewalsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "renewals",
		Short: "List renewals due within the lookahead window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			subs, err := a.deps.Subscriptions.List(cmd.Context(), a.user())
			if err != nil {
				return err
			}
			window := a.window(days)
			upcoming := analytics.UpcomingRenewals(subs, window, a.now())
			if len(upcoming) == 0 {
				a.info("No renewals in the next %d days", window)
				return nil
			}
			a.print(renderRenewals(upcoming))
			return nil
		},
	}
	a.windowFlag(cmd, &days)
	return cmd
}

func (a *App) exportCmd() *cobra.Command {
	var formats []string
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the subscriptions to JSON, CSV or PDF files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = cwd
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			subs, err := a.deps.Subscriptions.List(cmd.Context(), a.user())
			if err != nil {
				return err
			}

			exporter := export.NewExporter(abs)
			for _, raw := range formats {
				f, err := export.ParseFormat(raw)
				if err != nil {
					return err
				}
				path, err := exporter.Export(subs, f)
				if err != nil {
					return fmt.Errorf("export %s: %w", f, err)
				}
				a.success("Wrote %d subscriptions to %s", len(subs), path)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "y", []string{"json"}, "Export formats: json, csv, pdf")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to save the files (default: current directory)")
	return cmd
}

func (a *App) themeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system]",
		Short:     "Show or set the theme preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(preferences.ThemeLight), string(preferences.ThemeDark), string(preferences.ThemeSystem)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				settings, err := a.deps.Preferences.Load(cmd.Context(), a.user())
				if err != nil {
					return err
				}
				a.info("Theme: %s", settings.Theme)
				return nil
			}
			theme, err := preferences.ParseTheme(args[0])
			if err != nil {
				return err
			}
			if err := a.deps.Preferences.SetTheme(cmd.Context(), a.user(), theme); err != nil {
				return err
			}
			a.success("Theme set to %s", theme)
			return nil
		},
	}
}

func (a *App) remindersCmd() *cobra.Command {
	var cancelAll bool
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List pending renewal reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.deps.Reminders == nil {
				return fmt.Errorf("reminders are not enabled")
			}
			if cancelAll {
				n, err := a.deps.Reminders.CancelAll(cmd.Context(), a.user())
				if err != nil {
					return err
				}
				a.success("Canceled %d reminders", n)
				return nil
			}
			pending, err := a.deps.Reminders.Pending(cmd.Context(), a.user())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				a.info("No pending reminders")
				return nil
			}
			a.print(renderReminders(pending))
			return nil
		},
	}
	cmd.Flags().BoolVar(&cancelAll, "cancel-all", false, "Cancel every pending reminder")
	return cmd
}

func (a *App) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Add the subscriptions of a JSON export to the current user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			dump, err := export.ReadJSON(f)
			if err != nil {
				return err
			}
			subs, err := dump.Domain()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			for _, sub := range subs {
				sub.ID = ""
				sub.UserID = a.user()
				if _, err := a.deps.Subscriptions.Create(cmd.Context(), sub); err != nil {
					return fmt.Errorf("import %q: %w", sub.Name, err)
				}
			}
			a.success("Imported %d subscriptions from %s", len(subs), args[0])
			return nil
		},
	}
}
