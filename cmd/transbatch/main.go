// Command transbatch drives the batch-translation dataset pipeline:
// prepare batch request files, submit them to an LLM vendor, track
// and download the results, then reconcile and merge the streams
// into a single training dataset.
package main

import (
	"fmt"
	"os"

	"github.com/mcslab/transbatch-cli/internal/adapters/driving/cli"
)

// version is set at build time:
//
//	go build -ldflags "-X main.version=v1.2.3" ./cmd/transbatch
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
