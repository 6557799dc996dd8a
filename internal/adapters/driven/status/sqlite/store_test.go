package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestNewStore(t *testing.T) {
	store, dir := newTestStore(t)
	assert.NotEmpty(t, store.Path())

	// Migrations are idempotent across reopen.
	again, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestStore_SaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	submitted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := domain.BatchRecord{
		File:         "output/batch_1.jsonl",
		Field:        "output",
		JobID:        "msgbatch_123",
		Status:       domain.BatchRunning,
		RequestCount: 250,
		SubmittedAt:  submitted,
		UpdatedAt:    submitted,
	}
	require.NoError(t, store.Save(ctx, &rec))

	saved, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "output", saved.Field)
	assert.Equal(t, "msgbatch_123", saved.JobID)
	assert.Equal(t, domain.BatchRunning, saved.Status)
	assert.Equal(t, 250, saved.RequestCount)
	assert.True(t, saved.SubmittedAt.Equal(submitted))
	assert.False(t, saved.Downloaded)
	assert.Empty(t, saved.LastError)
}

func TestStore_Save_Update(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := domain.BatchRecord{
		File:   "output/batch_1.jsonl",
		Field:  "output",
		Status: domain.BatchRunning,
	}
	require.NoError(t, store.Save(ctx, &rec))

	rec.Status = domain.BatchEnded
	rec.Downloaded = true
	rec.ResultsFile = "/results/output/results_batch_1.jsonl"
	require.NoError(t, store.Save(ctx, &rec))

	saved, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchEnded, saved.Status)
	assert.True(t, saved.Downloaded)
	assert.Equal(t, "/results/output/results_batch_1.jsonl", saved.ResultsFile)
}

func TestStore_Get_NeverSubmitted(t *testing.T) {
	store, _ := newTestStore(t)

	rec, err := store.Get(context.Background(), "output/batch_9.jsonl")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_ZeroTimesStayZero(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.BatchRecord{
		File:   "output/batch_1.jsonl",
		Field:  "output",
		Status: domain.BatchFailed,
	}))

	saved, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	assert.True(t, saved.SubmittedAt.IsZero())
	assert.True(t, saved.UpdatedAt.IsZero())
}

func TestStore_List_OrderedByFile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, file := range []string{
		"output/batch_2.jsonl",
		"instruction/batch_1.jsonl",
		"output/batch_1.jsonl",
	} {
		require.NoError(t, store.Save(ctx, &domain.BatchRecord{
			File:   file,
			Field:  "x",
			Status: domain.BatchRunning,
		}))
	}

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "instruction/batch_1.jsonl", records[0].File)
	assert.Equal(t, "output/batch_1.jsonl", records[1].File)
	assert.Equal(t, "output/batch_2.jsonl", records[2].File)
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.BatchRecord{
		File:   "output/batch_1.jsonl",
		Field:  "output",
		Status: domain.BatchRunning,
	}))
	require.NoError(t, store.Delete(ctx, "output/batch_1.jsonl"))

	rec, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, "output/batch_1.jsonl"))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &domain.BatchRecord{
		File:   "output/batch_1.jsonl",
		Field:  "output",
		JobID:  "msgbatch_123",
		Status: domain.BatchEnded,
	}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	saved, err := reopened.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "msgbatch_123", saved.JobID)
	assert.Equal(t, domain.BatchEnded, saved.Status)
}
