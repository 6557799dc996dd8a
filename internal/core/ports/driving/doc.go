// Package driving defines the use-case interfaces the CLI drives:
// preparing batches, submitting and monitoring them, reconciling
// result streams and merging them into the final dataset.
package driving
