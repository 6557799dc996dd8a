package services

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
	"github.com/mcslab/transbatch-cli/internal/logger"
)

// Result lines can carry whole model completions; the default Scanner
// buffer of 64KiB is not enough.
const maxLineSize = 4 * 1024 * 1024

// DecodeError records one undecodable line of a results file.
type DecodeError struct {
	File string
	Line int // 1-based
	Err  error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

// LoadResult holds the envelopes decoded from one results file along
// with every line that failed to decode. Decode failures are data, not
// errors: a partially corrupt file still yields its good lines.
type LoadResult struct {
	Envelopes []*domain.ResultEnvelope
	Failures  []DecodeError
	Attempted int
}

// LoadEnvelopes reads line-delimited result envelopes from r. Blank
// lines are skipped; lines that fail to decode are recorded in
// Failures with their 1-based line number and never abort the load.
func LoadEnvelopes(r io.Reader, name string) LoadResult {
	var res LoadResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		res.Attempted++

		env, err := domain.DecodeEnvelope(line)
		if err != nil {
			res.Failures = append(res.Failures, DecodeError{File: name, Line: lineNo, Err: err})
			continue
		}
		res.Envelopes = append(res.Envelopes, env)
	}
	if err := scanner.Err(); err != nil {
		res.Failures = append(res.Failures, DecodeError{File: name, Line: lineNo + 1, Err: err})
	}

	return res
}

// StreamLoader builds per-field payload streams from downloaded
// results files.
type StreamLoader struct{}

// NewStreamLoader creates a new stream loader.
func NewStreamLoader() *StreamLoader {
	return &StreamLoader{}
}

// BuildFieldStream loads every file in paths, in order, into a single
// FieldStream for field. Later files win on duplicate keys. A path
// that does not exist is skipped (the gap shows up in reconciliation);
// a path that exists but cannot be read is an error.
func (l *StreamLoader) BuildFieldStream(field string, paths []string) (*domain.FieldStream, error) {
	stream := domain.NewFieldStream(field)

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Warn("Results file missing, skipping: %s", path)
				continue
			}
			return nil, fmt.Errorf("open results file %s: %w", path, err)
		}

		res := LoadEnvelopes(f, filepath.Base(path))
		f.Close()

		stream.Stats.LinesAttempted += res.Attempted
		stream.Stats.LinesDecoded += len(res.Envelopes)
		stream.Stats.DecodeFailures += len(res.Failures)
		for _, fail := range res.Failures {
			logger.Debug("Skipping undecodable line %s", fail.Error())
		}

		for _, env := range res.Envelopes {
			key, ok := domain.DecodeCustomID(env.CustomID)
			if !ok {
				stream.Stats.UnparseableIDs++
				logger.Debug("Unparseable custom_id %q in %s", env.CustomID, path)
				continue
			}

			ext := domain.Extract(env)
			switch ext.Status {
			case domain.ExtractSuccess:
				stream.Stats.Successful++
			case domain.ExtractEmpty:
				stream.Stats.EmptyPayloads++
			case domain.ExtractMalformedJSON, domain.ExtractAbsent:
				stream.Stats.ExtractionErrors++
			}
			stream.Put(key, ext.Text)
		}
	}

	return stream, nil
}

var resultsFilePattern = regexp.MustCompile(`^results_batch_(\d+)\.jsonl$`)

// DiscoverResultFiles returns every results_batch_N.jsonl in dir in
// ascending batch order. A missing directory yields an empty list.
func DiscoverResultFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read results directory %s: %w", dir, err)
	}

	type numbered struct {
		num  int
		path string
	}
	var files []numbered
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := resultsFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, numbered{num: num, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].num < files[j].num })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
