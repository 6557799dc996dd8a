package domain

import "sort"

// StreamStats accumulates the recoverable-per-line events observed
// while building a field stream. Nothing here is fatal; every count
// surfaces in the mismatch report.
type StreamStats struct {
	// LinesAttempted is the number of non-blank lines read.
	LinesAttempted int `json:"lines_attempted"`

	// LinesDecoded is the number of lines that parsed as JSON.
	LinesDecoded int `json:"lines_decoded"`

	// DecodeFailures counts lines that failed to parse as JSON.
	DecodeFailures int `json:"decode_failures"`

	// UnparseableIDs counts envelopes whose custom id yielded no key.
	UnparseableIDs int `json:"unparseable_ids"`

	// DuplicateKeys counts overwrite events: a key seen again in a
	// later line or file replaces the earlier payload.
	DuplicateKeys int `json:"duplicate_keys"`

	// ExtractionErrors counts envelopes with no recognised payload
	// shape. Tracked separately from empty payloads.
	ExtractionErrors int `json:"extraction_errors"`

	// EmptyPayloads counts extractions that trimmed to nothing.
	EmptyPayloads int `json:"empty_payloads"`

	// Successful counts extractions that produced usable text.
	Successful int `json:"successful"`
}

// Add accumulates another set of stats into s.
func (s *StreamStats) Add(other StreamStats) {
	s.LinesAttempted += other.LinesAttempted
	s.LinesDecoded += other.LinesDecoded
	s.DecodeFailures += other.DecodeFailures
	s.UnparseableIDs += other.UnparseableIDs
	s.DuplicateKeys += other.DuplicateKeys
	s.ExtractionErrors += other.ExtractionErrors
	s.EmptyPayloads += other.EmptyPayloads
	s.Successful += other.Successful
}

// FieldStream maps record keys to extracted payload text for one
// logical dataset field (e.g. "instruction"). Built fresh per run from
// one or more result files; within a stream each key maps to exactly
// one payload, with later occurrences overwriting earlier ones.
type FieldStream struct {
	// Field is the logical field name this stream feeds.
	Field string

	// Stats holds the per-line diagnostics gathered during the build.
	Stats StreamStats

	payloads map[int]string
}

// NewFieldStream creates an empty stream for a field.
func NewFieldStream(field string) *FieldStream {
	return &FieldStream{
		Field:    field,
		payloads: make(map[int]string),
	}
}

// Put stores the payload for key, applying last-writer-wins on
// duplicates. The overwrite is counted, never silently lost.
func (f *FieldStream) Put(key int, payload string) {
	if _, exists := f.payloads[key]; exists {
		f.Stats.DuplicateKeys++
	}
	f.payloads[key] = payload
}

// Get returns the payload for key.
func (f *FieldStream) Get(key int) (string, bool) {
	v, ok := f.payloads[key]
	return v, ok
}

// Len returns the number of distinct keys in the stream.
func (f *FieldStream) Len() int {
	return len(f.payloads)
}

// Keys returns the stream's record keys in ascending order.
func (f *FieldStream) Keys() []int {
	keys := make([]int, 0, len(f.payloads))
	for k := range f.payloads {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// IntersectKeys returns the keys present in every given stream, in
// ascending order. An empty or missing stream forces an empty result.
func IntersectKeys(streams map[string]*FieldStream) []int {
	if len(streams) == 0 {
		return nil
	}

	// Start from the smallest stream to keep membership checks cheap.
	var smallest *FieldStream
	for _, s := range streams {
		if smallest == nil || s.Len() < smallest.Len() {
			smallest = s
		}
	}

	var common []int
	for k := range smallest.payloads {
		inAll := true
		for _, s := range streams {
			if s == smallest {
				continue
			}
			if _, ok := s.payloads[k]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, k)
		}
	}
	sort.Ints(common)
	return common
}
