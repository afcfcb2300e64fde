package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/versioned-jobs/pkg/core"
)

// ──────────────────────────────────────────────────────────────────────────────
// Constructor / detection
// ──────────────────────────────────────────────────────────────────────────────

func TestNewGormStorage_IsSQLite(t *testing.T) {
	s := NewGormStorage(openSQLite(t))
	assert.True(t, s.IsSQLite(), "should detect SQLite dialect")
}

func TestNewGormStorage_DB(t *testing.T) {
	db := openSQLite(t)
	s := NewGormStorage(db)
	assert.Same(t, db, s.DB(), "DB() should return the same *gorm.DB passed in")
}

func TestNewGormStorage_NilDB(t *testing.T) {
	s := NewGormStorage(nil)
	assert.False(t, s.IsSQLite(), "nil db should not claim SQLite")
}

// ──────────────────────────────────────────────────────────────────────────────
// Create / Get / List
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_StartsAtVersionZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	job := &core.Job{
		Type:     "report.build",
		Queue:    "reports",
		Title:    "weekly",
		Priority: 5,
		Args:     []byte(`{"week":12}`),
	}
	require.NoError(t, s.Create(ctx, job))

	assert.NotEmpty(t, job.ID, "ID should be auto-generated")
	assert.Equal(t, int64(0), job.Version)
	assert.Equal(t, core.StatusPending, job.Status)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, "weekly", stored.Title)
	assert.Equal(t, "reports", stored.Queue)
	assert.Equal(t, 5, stored.Priority)
	assert.Equal(t, []byte(`{"week":12}`), stored.Args)
}

func TestCreate_IgnoresCallerSuppliedVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	job := newTestJob("", "task.run")
	job.Version = 42
	require.NoError(t, s.Create(ctx, job))

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, "default", stored.Queue)
}

func TestCreate_PreservesExistingID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	job := &core.Job{ID: "my-custom-id", Type: "task.run"}
	require.NoError(t, s.Create(ctx, job))
	assert.Equal(t, "my-custom-id", job.ID)
}

func TestCreate_RejectsInvalidJob(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	err := s.Create(ctx, &core.Job{Type: "9-starts-with-digit"})
	assert.ErrorIs(t, err, core.ErrInvalidJobTypeName)

	jobs, err := s.List(ctx, core.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStorage(t)

	job, err := s.Get(context.Background(), "missing")
	assert.Nil(t, job)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestList_FiltersByStatusAndQueue(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	a := newTestJob("alpha", "task.run")
	b := newTestJob("beta", "task.run")
	c := newTestJob("alpha", "task.run")
	c.Status = core.StatusRunning
	for _, j := range []*core.Job{a, b, c} {
		require.NoError(t, s.Create(ctx, j))
	}

	alpha, err := s.List(ctx, core.JobFilter{Queue: "alpha"})
	require.NoError(t, err)
	assert.Len(t, alpha, 2)

	running, err := s.List(ctx, core.JobFilter{Status: core.StatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, c.ID, running[0].ID)

	limited, err := s.List(ctx, core.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Update (version guard)
// ──────────────────────────────────────────────────────────────────────────────

func TestUpdate_IncrementsVersionByOne(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "first")

	for want := int64(1); want <= 5; want++ {
		updated, err := s.Update(ctx, job.ID, want-1, setTitle("rev"))
		require.NoError(t, err)
		assert.Equal(t, want, updated.Version)

		stored, err := s.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, want, stored.Version)
	}
}

func TestUpdate_AppliesMutation(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "before")

	updated, err := s.Update(ctx, job.ID, 0, func(j *core.Job) error {
		j.Title = "after"
		j.Status = core.StatusCompleted
		j.Result = []byte("done")
		j.Logs = "line 1\nline 2"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Title)
	assert.Equal(t, int64(1), updated.Version)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", stored.Title)
	assert.Equal(t, core.StatusCompleted, stored.Status)
	assert.Equal(t, []byte("done"), stored.Result)
	assert.Equal(t, "line 1\nline 2", stored.Logs)
}

func TestUpdate_MutationCannotTouchIdentityOrVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "x")

	updated, err := s.Update(ctx, job.ID, 0, func(j *core.Job) error {
		j.ID = "hijacked"
		j.Version = 100
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, job.ID, updated.ID)
	assert.Equal(t, int64(1), updated.Version)

	_, err = s.Get(ctx, "hijacked")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdate_StaleVersionIsRejectedWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "original")

	_, err := s.Update(ctx, job.ID, 0, setTitle("from A"))
	require.NoError(t, err)

	_, err = s.Update(ctx, job.ID, 0, func(j *core.Job) error {
		j.Title = "from B"
		j.Status = core.StatusFailed
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	var cm *core.ConcurrentModificationError
	require.True(t, errors.As(err, &cm))
	assert.Equal(t, job.ID, cm.JobID)
	assert.Equal(t, int64(0), cm.Expected)
	assert.Equal(t, int64(1), cm.Actual)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "from A", stored.Title)
	assert.Equal(t, core.StatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestUpdate_FutureVersionIsAConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "x")

	_, err := s.Update(ctx, job.ID, 7, setTitle("y"))
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	_, err = s.Update(ctx, job.ID, -1, setTitle("y"))
	assert.ErrorIs(t, err, core.ErrConcurrentModification)
}

func TestUpdate_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	createTestJob(t, s, "bystander")

	called := false
	_, err := s.Update(ctx, "missing", 0, func(j *core.Job) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, called, "mutation must not run for a missing job")

	jobs, err := s.List(ctx, core.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(0), jobs[0].Version)
}

func TestUpdate_MutationErrorAbortsUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "keep")

	boom := errors.New("boom")
	_, err := s.Update(ctx, job.ID, 0, func(j *core.Job) error {
		j.Title = "lost"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", stored.Title)
	assert.Equal(t, int64(0), stored.Version)
}

func TestUpdate_InvalidMutationIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "keep")

	_, err := s.Update(ctx, job.ID, 0, func(j *core.Job) error {
		j.Status = "paused"
		return nil
	})
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Version)
}

func TestUpdate_NilMutationStillBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "touch")

	updated, err := s.Update(ctx, job.ID, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "touch", updated.Title)
}

func TestUpdate_ConcurrentWritersExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "race")

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)

	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, job.ID, 0, setTitle("writer"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, core.ErrConcurrentModification):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes, "exactly one writer should win")
	assert.Equal(t, writers-1, conflicts)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

// Writer A and Writer B both read version 0; A saves first, B loses.
func TestUpdate_LostUpdateScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "draft")

	readA, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	readB, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), readA.Version)
	require.Equal(t, int64(0), readB.Version)

	updated, err := s.Update(ctx, job.ID, readA.Version, setTitle("A's title"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	_, err = s.Update(ctx, job.ID, readB.Version, setTitle("B's title"))
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	stored, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "A's title", stored.Title)
	assert.Equal(t, int64(1), stored.Version)
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete
// ──────────────────────────────────────────────────────────────────────────────

func TestDelete_RequiresCurrentVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	job := createTestJob(t, s, "doomed")

	_, err := s.Update(ctx, job.ID, 0, setTitle("v1"))
	require.NoError(t, err)

	err = s.Delete(ctx, job.ID, 0)
	assert.ErrorIs(t, err, core.ErrConcurrentModification)

	_, err = s.Get(ctx, job.ID)
	require.NoError(t, err, "stale delete must not remove the job")

	require.NoError(t, s.Delete(ctx, job.ID, 1))
	_, err = s.Get(ctx, job.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelete_NotFound(t *testing.T) {
	s := newTestStorage(t)
	assert.ErrorIs(t, s.Delete(context.Background(), "missing", 0), core.ErrNotFound)
}
