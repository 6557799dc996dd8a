package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamWithKeys(field string, keys ...int) *FieldStream {
	s := NewFieldStream(field)
	for _, k := range keys {
		s.Put(k, "payload")
	}
	return s
}

func TestFieldStream_PutOverwritesAndCounts(t *testing.T) {
	s := NewFieldStream("output")

	s.Put(7, "first")
	s.Put(7, "second")

	got, ok := s.Get(7)
	require.True(t, ok)
	assert.Equal(t, "second", got, "later occurrence must win")
	assert.Equal(t, 1, s.Stats.DuplicateKeys)
	assert.Equal(t, 1, s.Len())
}

func TestFieldStream_KeysSorted(t *testing.T) {
	s := streamWithKeys("instruction", 5, 1, 3, 2)

	assert.Equal(t, []int{1, 2, 3, 5}, s.Keys())
}

func TestIntersectKeys(t *testing.T) {
	streams := map[string]*FieldStream{
		"instruction": streamWithKeys("instruction", 1, 2, 3, 5),
		"input":       streamWithKeys("input", 1, 2, 3),
		"output":      streamWithKeys("output", 1, 2, 3, 4),
	}

	assert.Equal(t, []int{1, 2, 3}, IntersectKeys(streams))
}

func TestIntersectKeys_EmptyStreamForcesEmptyIntersection(t *testing.T) {
	streams := map[string]*FieldStream{
		"instruction": streamWithKeys("instruction", 1, 2, 3),
		"output":      NewFieldStream("output"),
	}

	assert.Empty(t, IntersectKeys(streams))
}

func TestIntersectKeys_NoStreams(t *testing.T) {
	assert.Nil(t, IntersectKeys(nil))
}

func TestStreamStats_Add(t *testing.T) {
	a := StreamStats{LinesAttempted: 10, LinesDecoded: 9, DecodeFailures: 1, Successful: 8, EmptyPayloads: 1}
	b := StreamStats{LinesAttempted: 5, LinesDecoded: 5, UnparseableIDs: 2, DuplicateKeys: 1, ExtractionErrors: 1, Successful: 2}

	a.Add(b)

	assert.Equal(t, 15, a.LinesAttempted)
	assert.Equal(t, 14, a.LinesDecoded)
	assert.Equal(t, 1, a.DecodeFailures)
	assert.Equal(t, 2, a.UnparseableIDs)
	assert.Equal(t, 1, a.DuplicateKeys)
	assert.Equal(t, 1, a.ExtractionErrors)
	assert.Equal(t, 1, a.EmptyPayloads)
	assert.Equal(t, 10, a.Successful)
}
