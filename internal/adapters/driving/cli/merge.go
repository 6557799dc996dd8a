package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var mergeSample int

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge result streams into the final dataset",
	Long: `Joins every field's result stream on the keys present in all of them
and writes the merged JSONL dataset in ascending key order. Keys
missing from any field are dropped; run 'transbatch reconcile' to see
which.`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().IntVar(&mergeSample, "sample", 0, "print the first N merged entries")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, _ []string) error {
	res, err := newMergeService().Merge(cmd.Context())
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	cmd.Println(titleStyle.Render("Merge complete"))
	cmd.Printf("  records: %d\n", res.Records)
	cmd.Printf("  output:  %s\n", res.OutputPath)
	if res.Report.TotalMismatches > 0 {
		cmd.Println(warningStyle.Render(fmt.Sprintf(
			"  %d keys were dropped because some field is missing them; see 'transbatch reconcile'",
			res.Report.TotalMismatches)))
	}

	if mergeSample > 0 {
		return printSample(cmd, res.OutputPath, mergeSample)
	}
	return nil
}

// printSample pretty-prints the first n entries of the merged file.
func printSample(cmd *cobra.Command, path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open merged file: %w", err)
	}
	defer f.Close()

	cmd.Println()
	cmd.Println(headerStyle.Render(fmt.Sprintf("First %d entries", n)))

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	shown := 0
	for scanner.Scan() && shown < n {
		var buf bytes.Buffer
		if err := json.Indent(&buf, scanner.Bytes(), "", "  "); err != nil {
			return fmt.Errorf("format merged line: %w", err)
		}
		cmd.Printf("%s\n", buf.String())
		shown++
	}
	return scanner.Err()
}
