package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit [field...]",
	Short: "Submit prepared batch files to the vendor",
	Long: `Submits every prepared batch file that is not already in flight or
successfully ended. Failed, expired and canceled batches are submitted
again. With no arguments, every configured non-constant field is
submitted.`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	svc, err := newSubmitService()
	if err != nil {
		return err
	}

	for _, field := range resolveFields(args) {
		summary, err := svc.SubmitAll(cmd.Context(), field)
		if err != nil {
			return fmt.Errorf("submit %s: %w", field, err)
		}

		cmd.Println(titleStyle.Render("Submitted " + field))
		cmd.Printf("  submitted: %d\n", summary.Submitted)
		cmd.Printf("  skipped:   %d\n", summary.Skipped)
		if summary.Failed > 0 {
			cmd.Println(errorStyle.Render(fmt.Sprintf("  failed:    %d", summary.Failed)))
		}
	}

	cmd.Println(mutedStyle.Render("Run 'transbatch status' to poll progress."))
	return nil
}
