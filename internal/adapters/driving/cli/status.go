package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/core/ports/driving"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Poll tracked batches and download finished results",
	Long: `Refreshes the status of every tracked batch, downloads results for
batches that ended, and prints the current state. With --watch, keeps
polling until every batch is settled.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "poll until all batches are settled")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	svc, err := newSubmitService()
	if err != nil {
		return err
	}

	if statusWatch {
		cmd.Printf("Polling every %s until all batches settle...\n", appConfig.PollInterval())
		if err := svc.Monitor(cmd.Context(), appConfig.PollInterval()); err != nil {
			return fmt.Errorf("monitor batches: %w", err)
		}
	}

	summary, err := svc.CheckAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("check batches: %w", err)
	}

	printCheckSummary(cmd, summary)
	return nil
}

func printCheckSummary(cmd *cobra.Command, summary *driving.CheckSummary) {
	if len(summary.Records) == 0 {
		cmd.Println("No batches tracked yet. Run 'transbatch submit' first.")
		return
	}

	cmd.Println(titleStyle.Render("Batch status"))
	for i := range summary.Records {
		rec := &summary.Records[i]

		state := string(rec.Status)
		switch {
		case rec.Downloaded:
			state = successStyle.Render(state + " ✓ downloaded")
		case rec.Status == domain.BatchEnded:
			state = successStyle.Render(state)
		case rec.Status.Terminal():
			state = errorStyle.Render(state)
		default:
			state = warningStyle.Render(state)
		}

		cmd.Printf("  %-40s %s", rec.File, state)
		if rec.JobID != "" {
			cmd.Printf("  %s", mutedStyle.Render(rec.JobID))
		}
		cmd.Println()

		if rec.LastError != "" {
			cmd.Printf("    %s\n", errorStyle.Render("last error: "+rec.LastError))
		}
	}

	if len(summary.NewlyEnded) > 0 {
		cmd.Printf("%d batch(es) ended this pass; %d result file(s) downloaded.\n",
			len(summary.NewlyEnded), summary.Downloaded)
	}
}
