package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/thirdtime/internal/adapters/httpapi"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/services"
)

var (
	historySince  string
	historySearch string
	historyLimit  int
	bankSince     string
	statsDays     int
	exportFormat  string
	exportSince   string
	exportOutput  string
)

// parseSince accepts "today", a duration back from now ("48h"), a date
// (2006-01-02) or an RFC3339 timestamp. Empty means def back from now.
func parseSince(value string, now time.Time, def time.Duration) (time.Time, error) {
	value = strings.TrimSpace(value)
	switch value {
	case "":
		return now.Add(-def), nil
	case "all":
		return time.Time{}, nil
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, domain.InvalidArgument("since", value)
}

func historyService() (*services.HistoryService, error) {
	store, err := openStorage()
	if err != nil {
		return nil, err
	}
	return services.NewHistoryService(store), nil
}

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past intervals",
	Long:  `List recorded intervals, newest first. --search fuzzy-matches labels of intervals started since --since.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		since, err := parseSince(historySince, time.Now(), 7*24*time.Hour)
		if err != nil {
			return err
		}
		svc, err := historyService()
		if err != nil {
			return err
		}

		var intervals []*domain.IntervalRecord
		if historySearch != "" {
			intervals, err = svc.SearchIntervals(ctx, historySearch, since, historyLimit)
		} else {
			intervals, err = svc.RecentIntervals(ctx, since, historyLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			dtos := make([]*httpapi.IntervalDTO, 0, len(intervals))
			for _, iv := range intervals {
				dtos = append(dtos, httpapi.NewIntervalDTO(iv))
			}
			return writeJSONOutput(out, dtos)
		}
		if len(intervals) == 0 {
			fmt.Fprintln(out, "No intervals found.")
			return nil
		}
		for _, iv := range intervals {
			printInterval(out, iv)
		}
		return nil
	},
}

func printInterval(w io.Writer, iv *domain.IntervalRecord) {
	actual := "running"
	if iv.EndedAt != nil {
		actual = formatClock(iv.Elapsed(*iv.EndedAt))
	}
	planned := "-"
	if iv.ExpectedEndTime != nil {
		planned = formatClock(iv.PlannedDuration())
	}
	line := fmt.Sprintf("%s  %-11s  %8s / %-8s", iv.StartTime.Local().Format("2006-01-02 15:04"), iv.Kind.Label(), actual, planned)
	if iv.Forced {
		line += "  (ended early)"
	}
	if iv.Label != "" {
		line += "  " + iv.Label
	}
	if iv.GitBranch != "" {
		line += fmt.Sprintf("  [%s]", iv.GitBranch)
	}
	fmt.Fprintln(w, line)
}

// bankCmd represents the bank command
var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Show the break bank ledger",
	Long:  `Show every recorded change of the break bank, oldest first, and the current balance.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		since, err := parseSince(bankSince, time.Now(), 7*24*time.Hour)
		if err != nil {
			return err
		}
		svc, err := historyService()
		if err != nil {
			return err
		}
		entries, err := svc.BankHistory(ctx, since)
		if err != nil {
			return fmt.Errorf("failed to load bank history: %w", err)
		}
		balance, err := svc.LatestBalance(ctx)
		if err != nil {
			return fmt.Errorf("failed to load bank balance: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			dtos := make([]httpapi.BankEntryDTO, 0, len(entries))
			for _, e := range entries {
				dtos = append(dtos, httpapi.NewBankEntryDTO(e))
			}
			return writeJSONOutput(out, map[string]any{
				"entries":         dtos,
				"balance_seconds": balance.Seconds(),
			})
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %-13s  %9s  => %s\n",
				e.At.Local().Format("2006-01-02 15:04"), e.Reason, formatSigned(e.Delta), formatSigned(e.Balance))
		}
		fmt.Fprintf(out, "Balance: %s\n", formatSigned(balance))
		return nil
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daily statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := historyService()
		if err != nil {
			return err
		}
		days, err := svc.DailyStats(cmd.Context(), time.Now(), statsDays)
		if err != nil {
			return fmt.Errorf("failed to load statistics: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			dtos := make([]httpapi.StatsDTO, 0, len(days))
			for _, d := range days {
				dtos = append(dtos, httpapi.NewStatsDTO(*d))
			}
			return writeJSONOutput(out, dtos)
		}

		var work, rest time.Duration
		var intervals int
		fmt.Fprintf(out, "%-10s  %5s  %6s  %5s  %7s  %7s\n", "Date", "Work", "Breaks", "Long", "Worked", "Rested")
		for _, d := range days {
			fmt.Fprintf(out, "%-10s  %5d  %6d  %5d  %7s  %7s\n",
				d.Date.Format("2006-01-02"), d.WorkIntervals, d.BreaksTaken, d.LongBreaks,
				formatMinutes(d.TotalWorkTime), formatMinutes(d.TotalBreak))
			work += d.TotalWorkTime
			rest += d.TotalBreak
			intervals += d.WorkIntervals
		}
		fmt.Fprintf(out, "\nTotal: %d work intervals, %s worked, %s rested\n", intervals, formatMinutes(work), formatMinutes(rest))
		return nil
	},
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export interval and bank history",
	Long:  "Export intervals and bank ledger entries as json, yaml or csv (intervals only).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context(), cmd.OutOrStdout())
	},
}

func runExport(ctx context.Context, stdout io.Writer) error {
	now := time.Now()
	since, err := parseSince(exportSince, now, 30*24*time.Hour)
	if err != nil {
		return err
	}
	svc, err := historyService()
	if err != nil {
		return err
	}

	out := stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch exportFormat {
	case "csv":
		doc, err := svc.BuildExport(ctx, since, now)
		if err != nil {
			return err
		}
		return exportCSV(out, doc)
	default:
		return svc.Export(ctx, out, services.ExportFormat(exportFormat), since, now)
	}
}

func exportCSV(w io.Writer, doc *services.ExportDocument) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"id", "kind", "label", "started_at", "ended_at", "planned_seconds", "actual_seconds", "forced", "git_branch", "git_commit"})
	for _, iv := range doc.Intervals {
		ended := ""
		if iv.EndedAt != nil {
			ended = iv.EndedAt.Format(time.RFC3339)
		}
		cw.Write([]string{
			iv.ID,
			iv.Kind,
			iv.Label,
			iv.StartedAt.Format(time.RFC3339),
			ended,
			strconv.FormatFloat(iv.PlannedSec, 'f', -1, 64),
			strconv.FormatFloat(iv.ActualSec, 'f', -1, 64),
			strconv.FormatBool(iv.Forced),
			iv.GitBranch,
			iv.GitCommit,
		})
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "", "Start of the range: today, all, a duration like 48h, a date or RFC3339 (default 7 days)")
	historyCmd.Flags().StringVarP(&historySearch, "search", "s", "", "Fuzzy search over labels")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of intervals (0 for all)")

	bankCmd.Flags().StringVar(&bankSince, "since", "", "Start of the range (default 7 days)")

	statsCmd.Flags().IntVarP(&statsDays, "days", "d", 7, "Number of days to show")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, yaml or csv")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "Start of the range (default 30 days)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
}
