package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

// rangesShown caps how many ranges a console listing prints before
// truncating to "... and N more".
const rangesShown = 20

var reconcileReportPath string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare result streams and report key mismatches",
	Long: `Loads every field's downloaded result files, compares their key sets
and prints which keys are missing from which field. The full report is
also written as JSON.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileReportPath, "report", "", "JSON report path (default from config)")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	report, err := newReconcileService().Reconcile(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	printMismatchReport(cmd, report)

	path := reconcileReportPath
	if path == "" {
		path = appConfig.Paths.Report
	}
	if err := writeJSONReport(path, report); err != nil {
		return err
	}
	cmd.Printf("\nFull report written to %s\n", path)
	return nil
}

func printMismatchReport(cmd *cobra.Command, report *domain.MismatchReport) {
	cmd.Println(titleStyle.Render("Mismatch analysis"))
	cmd.Printf("  matching keys across all fields: %d\n", report.IntersectionSize)
	if report.TotalMismatches == 0 {
		cmd.Println(successStyle.Render("  no mismatches: every field covers the same keys"))
	} else {
		cmd.Println(errorStyle.Render(fmt.Sprintf("  total mismatches: %d", report.TotalMismatches)))
	}

	for _, field := range report.Fields {
		cmd.Println()
		cmd.Println(headerStyle.Render(field.Field))
		cmd.Printf("  keys:           %d", field.TotalKeys)
		if field.TotalKeys > 0 {
			cmd.Printf("  (span %d..%d)", field.Coverage.Min, field.Coverage.Max)
		}
		cmd.Println()
		cmd.Printf("  source files:   %d\n", len(field.SourceFiles))

		stats := field.Stats
		cmd.Printf("  lines decoded:  %d/%d\n", stats.LinesDecoded, stats.LinesAttempted)
		if stats.DecodeFailures > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  decode failures: %d", stats.DecodeFailures)))
		}
		if stats.UnparseableIDs > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  unparseable ids: %d", stats.UnparseableIDs)))
		}
		if stats.DuplicateKeys > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  duplicate keys:  %d", stats.DuplicateKeys)))
		}
		if stats.ExtractionErrors > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  extraction errors: %d", stats.ExtractionErrors)))
		}
		if stats.EmptyPayloads > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  empty payloads:  %d", stats.EmptyPayloads)))
		}

		if field.OnlyInCount > 0 {
			cmd.Println(errorStyle.Render(fmt.Sprintf("  only in %s: %d keys", field.Field, field.OnlyInCount)))
			cmd.Printf("    %s\n", formatRanges(field.OnlyIn))
		}
		if field.Coverage.MissingCount > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  gaps in span:   %d keys missing", field.Coverage.MissingCount)))
			cmd.Printf("    %s\n", formatRanges(field.Coverage.Gaps))
		}
	}
}

// formatRanges renders ranges as "0-249, 300, 512-740", truncated.
func formatRanges(ranges []domain.Range) string {
	parts := make([]string, 0, len(ranges))
	for i, r := range ranges {
		if i >= rangesShown {
			break
		}
		if r.Start == r.End {
			parts = append(parts, fmt.Sprintf("%d", r.Start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r.Start, r.End))
		}
	}
	out := strings.Join(parts, ", ")
	if len(ranges) > rangesShown {
		out += fmt.Sprintf(" ... and %d more", len(ranges)-rangesShown)
	}
	return out
}

func writeJSONReport(path string, report *domain.MismatchReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
