package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

var downloadCmd = &cobra.Command{
	Use:   "download [batch-file]",
	Short: "Fetch results for ended batches",
	Long: `Downloads the result file of an ended batch. The batch file is named
as <field>/batch_N.jsonl. With no argument, every ended batch that has
not been downloaded yet is fetched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	svc, err := newSubmitService()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		rec, err := svc.Download(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("download %s: %w", args[0], err)
		}
		cmd.Printf("Downloaded %s -> %s\n", rec.File, rec.ResultsFile)
		return nil
	}

	store, err := newStatusStore()
	if err != nil {
		return err
	}
	records, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list batches: %w", err)
	}

	downloaded := 0
	for i := range records {
		rec := &records[i]
		if rec.Status != domain.BatchEnded || rec.Downloaded {
			continue
		}
		fresh, err := svc.Download(cmd.Context(), rec.File)
		if err != nil {
			cmd.Println(errorStyle.Render(fmt.Sprintf("download %s: %v", rec.File, err)))
			continue
		}
		cmd.Printf("Downloaded %s -> %s\n", fresh.File, fresh.ResultsFile)
		downloaded++
	}

	if downloaded == 0 {
		cmd.Println("Nothing to download.")
	}
	return nil
}
