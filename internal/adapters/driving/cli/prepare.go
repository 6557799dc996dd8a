package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [field...]",
	Short: "Build vendor batch request files from the source dataset",
	Long: `Reads the source dataset and writes one batch request file per chunk
for each field. With no arguments, every configured non-constant field
is prepared.`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	svc, err := newPrepareService()
	if err != nil {
		return err
	}

	for _, field := range resolveFields(args) {
		res, err := svc.Prepare(cmd.Context(), field)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", field, err)
		}

		cmd.Println(titleStyle.Render("Prepared " + field))
		cmd.Printf("  requests:       %d\n", res.Requests)
		cmd.Printf("  batch files:    %d (%s)\n", len(res.BatchFiles), strings.Join(res.BatchFiles, ", "))
		if res.SkippedEmpty > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  skipped empty:  %d", res.SkippedEmpty)))
		}
		if res.DecodeErrors > 0 {
			cmd.Println(warningStyle.Render(fmt.Sprintf("  decode errors:  %d", res.DecodeErrors)))
		}
	}
	return nil
}
