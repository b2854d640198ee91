package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/job-pipeline/internal/pipeline/domain"
)

func TestRegistry_Create(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		setup     func(r *Registry)
		jobID     int
		submitted time.Time
		started   time.Time
		wantErr   error
	}{
		{
			name:      "new job",
			jobID:     0,
			submitted: now,
			started:   now.Add(time.Second),
		},
		{
			name:      "equal timestamps",
			jobID:     1,
			submitted: now,
			started:   now,
		},
		{
			name: "duplicate id",
			setup: func(r *Registry) {
				require.NoError(t, r.Create(7, now, now))
			},
			jobID:     7,
			submitted: now,
			started:   now,
			wantErr:   domain.ErrDuplicateJob,
		},
		{
			name:      "started before submitted",
			jobID:     2,
			submitted: now,
			started:   now.Add(-time.Second),
			wantErr:   domain.ErrInvalidTimestamps,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil)
			if tt.setup != nil {
				tt.setup(r)
			}

			err := r.Create(tt.jobID, tt.submitted, tt.started)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, domain.IsFatal(err))
				return
			}

			require.NoError(t, err)
			job, err := r.Get(tt.jobID)
			require.NoError(t, err)
			assert.True(t, job.Running())
			assert.Equal(t, tt.submitted, job.SubmittedAt)
			assert.Equal(t, tt.started, job.StartedAt)
		})
	}
}

func TestRegistry_MarkFinished(t *testing.T) {
	now := time.Now()

	t.Run("finishes a running job", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Create(3, now, now.Add(time.Second)))

		require.NoError(t, r.MarkFinished(3, now.Add(3*time.Second)))

		job, err := r.Get(3)
		require.NoError(t, err)
		assert.False(t, job.Running())
		assert.Equal(t, 2*time.Second, job.Runtime())
		assert.Equal(t, 3*time.Second, job.Roundtrip())
	})

	t.Run("unknown job", func(t *testing.T) {
		r := NewRegistry(nil)
		err := r.MarkFinished(42, now)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)

		var violation *domain.RegistryViolation
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, "finish", violation.Op)
		assert.Equal(t, 42, violation.JobID)
	})

	t.Run("finished twice keeps first timestamp", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Create(1, now, now))
		first := now.Add(time.Second)
		require.NoError(t, r.MarkFinished(1, first))

		err := r.MarkFinished(1, now.Add(time.Hour))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrJobAlreadyFinished)

		job, err := r.Get(1)
		require.NoError(t, err)
		assert.Equal(t, first, *job.FinishedAt)
	})

	t.Run("finished before started", func(t *testing.T) {
		r := NewRegistry(nil)
		require.NoError(t, r.Create(1, now, now.Add(time.Second)))
		err := r.MarkFinished(1, now)
		assert.ErrorIs(t, err, domain.ErrInvalidTimestamps)
	})
}

func TestRegistry_CountsAndSnapshot(t *testing.T) {
	now := time.Now()
	r := NewRegistry(nil)

	for _, id := range []int{4, 1, 3, 0} {
		require.NoError(t, r.Create(id, now, now))
	}
	require.NoError(t, r.MarkFinished(1, now.Add(time.Second)))
	require.NoError(t, r.MarkFinished(4, now.Add(time.Second)))

	running, finished := r.Counts()
	assert.Equal(t, 2, running)
	assert.Equal(t, 2, finished)
	assert.Equal(t, 2, r.CountRunning())
	assert.Equal(t, 2, r.CountFinished())
	assert.Equal(t, 4, r.Len())

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 4)
	for i, want := range []int{0, 1, 3, 4} {
		assert.Equal(t, want, snapshot[i].ID)
	}
	assert.Equal(t, []int{4, 1, 3, 0}, r.CreationOrder())

	// snapshot entries are copies
	*snapshot[1].FinishedAt = now.Add(time.Hour)
	job, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Second), *job.FinishedAt)
}

func TestRegistry_ConcurrentWriters(t *testing.T) {
	const jobs = 200
	now := time.Now()
	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			assert.NoError(t, r.Create(id, now, now))
			_ = r.CountRunning()
			assert.NoError(t, r.MarkFinished(id, now.Add(time.Millisecond)))
		}(i)
	}
	wg.Wait()

	running, finished := r.Counts()
	assert.Equal(t, 0, running)
	assert.Equal(t, jobs, finished)
}
