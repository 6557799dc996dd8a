package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompressRanges(t *testing.T) {
	tests := []struct {
		name string
		keys []int
		want []Range
	}{
		{"empty", nil, nil},
		{"single", []int{4}, []Range{{4, 4}}},
		{"contiguous", []int{1, 2, 3}, []Range{{1, 3}}},
		{"two runs", []int{1, 2, 5, 6, 7}, []Range{{1, 2}, {5, 7}}},
		{"unsorted input", []int{7, 1, 6, 2, 5}, []Range{{1, 2}, {5, 7}}},
		{"duplicates collapse", []int{3, 3, 4}, []Range{{3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompressRanges(tt.keys))
		})
	}
}

func TestAnalyzeGaps(t *testing.T) {
	got := AnalyzeGaps([]int{0, 1, 2, 5, 6, 9})

	assert.Equal(t, 0, got.Min)
	assert.Equal(t, 9, got.Max)
	assert.Equal(t, []Range{{0, 2}, {5, 6}, {9, 9}}, got.Ranges)
	assert.Equal(t, []Range{{3, 4}, {7, 8}}, got.Gaps)
	assert.Equal(t, 10, got.TotalExpected)
	assert.Equal(t, 6, got.TotalActual)
	assert.Equal(t, 4, got.MissingCount)
}

func TestAnalyzeGaps_Empty(t *testing.T) {
	got := AnalyzeGaps(nil)

	assert.Zero(t, got)
}

func TestAnalyzeGaps_NoGaps(t *testing.T) {
	got := AnalyzeGaps([]int{10, 11, 12})

	assert.Nil(t, got.Gaps)
	assert.Equal(t, 0, got.MissingCount)
}

func TestRange_Count(t *testing.T) {
	assert.Equal(t, 1, Range{5, 5}.Count())
	assert.Equal(t, 10, Range{0, 9}.Count())
}
