package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicLine(customID, text string) string {
	return `{"custom_id":"` + customID + `","result":{"message":{"content":[{"type":"text","text":"` + text + `"}]}}}`
}

func openaiLine(customID, text string) string {
	return `{"custom_id":"` + customID + `","response":{"body":{"choices":[{"message":{"content":"` + text + `"}}]}}}`
}

func TestLoadEnvelopes(t *testing.T) {
	input := strings.Join([]string{
		anthropicLine("ds_output_line_0", "pehla"),
		"",
		"   ",
		"not json at all",
		openaiLine("ds_output_line_1", "doosra"),
	}, "\n")

	res := LoadEnvelopes(strings.NewReader(input), "results_batch_1.jsonl")

	assert.Equal(t, 3, res.Attempted)
	require.Len(t, res.Envelopes, 2)
	assert.Equal(t, "ds_output_line_0", res.Envelopes[0].CustomID)
	assert.Equal(t, "ds_output_line_1", res.Envelopes[1].CustomID)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "results_batch_1.jsonl", res.Failures[0].File)
	assert.Equal(t, 4, res.Failures[0].Line)
}

func TestLoadEnvelopes_Empty(t *testing.T) {
	res := LoadEnvelopes(strings.NewReader(""), "empty.jsonl")
	assert.Zero(t, res.Attempted)
	assert.Empty(t, res.Envelopes)
	assert.Empty(t, res.Failures)
}

func writeResultsFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestBuildFieldStream(t *testing.T) {
	dir := t.TempDir()
	first := writeResultsFile(t, dir, "results_batch_1.jsonl",
		anthropicLine("ds_output_line_0", "old"),
		anthropicLine("ds_output_line_1", "ek"),
		`{"custom_id":"unrelated_id","result":{"message":{"content":[{"type":"text","text":"x"}]}}}`,
		"garbage line",
	)
	second := writeResultsFile(t, dir, "results_batch_2.jsonl",
		anthropicLine("ds_output_line_0", "new"),
		anthropicLine("ds_output_line_5", "paanch"),
	)

	loader := NewStreamLoader()
	stream, err := loader.BuildFieldStream("output", []string{first, second})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 5}, stream.Keys())

	// The later file wins key 0.
	text, ok := stream.Get(0)
	require.True(t, ok)
	assert.Equal(t, "new", text)

	assert.Equal(t, 6, stream.Stats.LinesAttempted)
	assert.Equal(t, 5, stream.Stats.LinesDecoded)
	assert.Equal(t, 1, stream.Stats.DecodeFailures)
	assert.Equal(t, 1, stream.Stats.UnparseableIDs)
	assert.Equal(t, 1, stream.Stats.DuplicateKeys)
	assert.Equal(t, 4, stream.Stats.Successful)
}

func TestBuildFieldStream_MissingFileSkipped(t *testing.T) {
	dir := t.TempDir()
	present := writeResultsFile(t, dir, "results_batch_2.jsonl",
		anthropicLine("ds_output_line_3", "teen"),
	)

	loader := NewStreamLoader()
	stream, err := loader.BuildFieldStream("output", []string{
		filepath.Join(dir, "results_batch_1.jsonl"), // never written
		present,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, stream.Keys())
}

func TestBuildFieldStream_NoFiles(t *testing.T) {
	loader := NewStreamLoader()
	stream, err := loader.BuildFieldStream("output", nil)
	require.NoError(t, err)
	assert.Zero(t, stream.Len())
}

func TestDiscoverResultFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"results_batch_10.jsonl",
		"results_batch_2.jsonl",
		"results_batch_1.jsonl",
		"notes.txt",
		"batch_3.jsonl",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0o644))
	}

	paths, err := DiscoverResultFiles(dir)
	require.NoError(t, err)

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	assert.Equal(t, []string{
		"results_batch_1.jsonl",
		"results_batch_2.jsonl",
		"results_batch_10.jsonl",
	}, names)
}

func TestDiscoverResultFiles_MissingDir(t *testing.T) {
	paths, err := DiscoverResultFiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, paths)
}
