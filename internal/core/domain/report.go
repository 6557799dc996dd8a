package domain

import "sort"

// Range is an inclusive run of consecutive record keys. Large gap and
// only-in listings are compressed into ranges to stay readable.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Count returns the number of keys covered by the range.
func (r Range) Count() int {
	return r.End - r.Start + 1
}

// CompressRanges collapses a key set into sorted, inclusive ranges of
// consecutive keys. The input is sorted first so the output never
// depends on map iteration order.
func CompressRanges(keys []int) []Range {
	if len(keys) == 0 {
		return nil
	}

	sorted := make([]int, len(keys))
	copy(sorted, keys)
	sort.Ints(sorted)

	var ranges []Range
	start, prev := sorted[0], sorted[0]
	for _, k := range sorted[1:] {
		if k == prev {
			continue
		}
		if k != prev+1 {
			ranges = append(ranges, Range{Start: start, End: prev})
			start = k
		}
		prev = k
	}
	return append(ranges, Range{Start: start, End: prev})
}

// GapAnalysis describes the coverage of a key set over its min..max
// span: which runs are present, which are missing.
type GapAnalysis struct {
	Min           int     `json:"min"`
	Max           int     `json:"max"`
	Ranges        []Range `json:"ranges"`
	Gaps          []Range `json:"gaps"`
	TotalExpected int     `json:"total_expected"`
	TotalActual   int     `json:"total_actual"`
	MissingCount  int     `json:"missing_count"`
}

// AnalyzeGaps computes the present ranges and the gaps between them
// for a key set. An empty set yields a zero analysis.
func AnalyzeGaps(keys []int) GapAnalysis {
	if len(keys) == 0 {
		return GapAnalysis{}
	}

	ranges := CompressRanges(keys)
	var gaps []Range
	for i := 1; i < len(ranges); i++ {
		gaps = append(gaps, Range{Start: ranges[i-1].End + 1, End: ranges[i].Start - 1})
	}

	min, max := ranges[0].Start, ranges[len(ranges)-1].End
	actual := 0
	for _, r := range ranges {
		actual += r.Count()
	}

	return GapAnalysis{
		Min:           min,
		Max:           max,
		Ranges:        ranges,
		Gaps:          gaps,
		TotalExpected: max - min + 1,
		TotalActual:   actual,
		MissingCount:  (max - min + 1) - actual,
	}
}

// FieldReport summarises one field stream against the intersection.
type FieldReport struct {
	// Field is the logical field name.
	Field string `json:"field"`

	// TotalKeys is the number of distinct keys in the stream.
	TotalKeys int `json:"total_keys"`

	// OnlyIn lists keys present in this stream but absent from the
	// intersection, range-compressed.
	OnlyIn []Range `json:"only_in"`

	// OnlyInCount is the number of keys covered by OnlyIn.
	OnlyInCount int `json:"only_in_count"`

	// Coverage analyses the stream's own key span for gaps.
	Coverage GapAnalysis `json:"coverage"`

	// Stats carries the per-line diagnostics from the stream build.
	Stats StreamStats `json:"stats"`

	// SourceFiles lists the result files the stream was built from,
	// in processing order.
	SourceFiles []string `json:"source_files,omitempty"`
}

// MismatchReport is the read-only outcome of one reconciliation run.
// It answers "which keys are missing from which field, and why"
// without re-running extraction. Produced once, never mutated.
type MismatchReport struct {
	// Fields holds one report per stream, in the configured field order.
	Fields []FieldReport `json:"fields"`

	// IntersectionSize is the number of keys present in every stream.
	IntersectionSize int `json:"intersection_size"`

	// TotalMismatches is the sum of every field's OnlyInCount.
	TotalMismatches int `json:"total_mismatches"`
}

// FieldNames returns the report's field names in order.
func (r *MismatchReport) FieldNames() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Field
	}
	return names
}
