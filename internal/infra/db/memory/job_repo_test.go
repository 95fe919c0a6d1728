package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
)

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()

	require.NoError(t, r.Save(ctx, &domain.Job{ID: "job_1", UploadID: "1", Status: domain.StatusPending, TotalBlocks: 3}))
	require.NoError(t, r.UpdateProgress(ctx, "job_1", domain.StatusRunning, 2))

	j, err := r.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, j.Status)
	assert.Equal(t, 2, j.ProcessedBlocks)
	assert.Equal(t, 3, j.TotalBlocks)
	assert.False(t, j.UpdatedAt.IsZero())

	j.Status = domain.StatusCancelled
	again, err := r.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, again.Status, "Get must hand out copies")
}

func TestJobRepository_Unknown(t *testing.T) {
	r := NewJobRepository()
	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	assert.ErrorIs(t, r.UpdateProgress(context.Background(), "missing", domain.StatusRunning, 1), domain.ErrJobNotFound)
}

func TestJobRepository_Concurrent(t *testing.T) {
	ctx := context.Background()
	r := NewJobRepository()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.JobID(fmt.Sprintf("job_%d", i))
			_ = r.Save(ctx, &domain.Job{ID: id})
			for p := 1; p <= 10; p++ {
				_ = r.UpdateProgress(ctx, id, domain.StatusRunning, p)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		j, err := r.Get(ctx, domain.JobID(fmt.Sprintf("job_%d", i)))
		require.NoError(t, err)
		assert.Equal(t, 10, j.ProcessedBlocks)
	}
}
