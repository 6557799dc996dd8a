package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcslab/transbatch-cli/internal/core/domain"
)

func TestNewStore(t *testing.T) {
	store := NewStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.records)
}

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	rec := domain.BatchRecord{
		File:         "output/batch_1.jsonl",
		Field:        "output",
		JobID:        "msgbatch_123",
		Status:       domain.BatchRunning,
		RequestCount: 250,
		SubmittedAt:  time.Now(),
	}

	require.NoError(t, store.Save(ctx, &rec))

	saved, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "msgbatch_123", saved.JobID)
	assert.Equal(t, domain.BatchRunning, saved.Status)
	assert.Equal(t, 250, saved.RequestCount)
}

func TestStore_Save_Update(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	rec := domain.BatchRecord{File: "output/batch_1.jsonl", Status: domain.BatchRunning}
	require.NoError(t, store.Save(ctx, &rec))

	rec.Status = domain.BatchEnded
	rec.Downloaded = true
	require.NoError(t, store.Save(ctx, &rec))

	saved, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchEnded, saved.Status)
	assert.True(t, saved.Downloaded)
}

func TestStore_Get_NeverSubmitted(t *testing.T) {
	store := NewStore()

	rec, err := store.Get(context.Background(), "output/batch_9.jsonl")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.BatchRecord{
		File:   "output/batch_1.jsonl",
		Status: domain.BatchRunning,
	}))

	first, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	first.Status = domain.BatchFailed

	second, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchRunning, second.Status)
}

func TestStore_List_OrderedByFile(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	for _, file := range []string{
		"output/batch_2.jsonl",
		"instruction/batch_1.jsonl",
		"output/batch_1.jsonl",
	} {
		require.NoError(t, store.Save(ctx, &domain.BatchRecord{File: file}))
	}

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "instruction/batch_1.jsonl", records[0].File)
	assert.Equal(t, "output/batch_1.jsonl", records[1].File)
	assert.Equal(t, "output/batch_2.jsonl", records[2].File)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.BatchRecord{File: "output/batch_1.jsonl"}))
	require.NoError(t, store.Delete(ctx, "output/batch_1.jsonl"))

	rec, err := store.Get(ctx, "output/batch_1.jsonl")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, "output/batch_1.jsonl"))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := domain.BatchRecord{File: "output/batch_1.jsonl", RequestCount: n}
			_ = store.Save(ctx, &rec)
			_, _ = store.Get(ctx, "output/batch_1.jsonl")
			_, _ = store.List(ctx)
		}(i)
	}
	wg.Wait()
}
