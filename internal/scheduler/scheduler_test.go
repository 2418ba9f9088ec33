package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/statements/internal/modules/snapshot"
	testingpkg "github.com/aristath/statements/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs chan struct{}
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs <- struct{}{}
	return j.err
}

type stubReloader struct {
	calls int
	err   error
}

func (s *stubReloader) Reload(ctx context.Context) (*snapshot.Snapshot, error) {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("reload without deadline")
	}
	return nil, s.err
}

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run() error {
	j.started <- struct{}{}
	<-j.release
	return nil
}

func TestScheduler_AddJobValidates(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AddJob("not a schedule", &countingJob{runs: make(chan struct{}, 1)})
	assert.ErrorContains(t, err, "invalid schedule")
	// five-field expressions lack the seconds field
	assert.Error(t, s.AddJob("*/5 * * * *", &countingJob{runs: make(chan struct{}, 1)}))
	assert.Error(t, s.AddJob("", nil))
	assert.Empty(t, s.Jobs())

	require.NoError(t, s.AddJob("", &countingJob{runs: make(chan struct{}, 1)}))
	assert.ErrorContains(t, s.AddJob("@hourly", &countingJob{runs: make(chan struct{}, 1)}), "already registered")
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 4), err: errors.New("ignored")}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	select {
	case <-job.runs:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestScheduler_RunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 2), err: errors.New("boom")}
	require.NoError(t, s.AddJob("", job))

	assert.EqualError(t, s.Run("counting"), "boom")
	assert.Len(t, job.runs, 1)

	job.err = nil
	require.NoError(t, s.Run("counting"))

	err := s.Run("missing")
	assert.ErrorIs(t, err, ErrUnknownJob)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	st := jobs[0]
	assert.Equal(t, "counting", st.Name)
	assert.Empty(t, st.Schedule)
	assert.Nil(t, st.NextRun)
	assert.False(t, st.Running)
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, 1, st.Failures)
	require.NotNil(t, st.LastRun)
	assert.Empty(t, st.LastError)
}

func TestScheduler_JobsReportsScheduleAndFailure(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &countingJob{runs: make(chan struct{}, 1), err: errors.New("disk full")}))
	assert.EqualError(t, s.Run("counting"), "disk full")

	s.Start()
	defer s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "@hourly", jobs[0].Schedule)
	require.NotNil(t, jobs[0].NextRun)
	assert.True(t, jobs[0].NextRun.After(time.Now()))
	assert.Equal(t, "disk full", jobs[0].LastError)
}

func TestScheduler_RunDoesNotOverlap(t *testing.T) {
	s := New(zerolog.Nop())
	job := &blockingJob{started: make(chan struct{}, 1), release: make(chan struct{})}
	require.NoError(t, s.AddJob("", job))

	done := make(chan error, 1)
	go func() { done <- s.Run("blocking") }()
	<-job.started

	assert.True(t, s.Jobs()[0].Running)
	assert.ErrorIs(t, s.Run("blocking"), ErrJobRunning)

	close(job.release)
	require.NoError(t, <-done)
	st := s.Jobs()[0]
	assert.False(t, st.Running)
	assert.Equal(t, 1, st.Runs)
}

func TestReloadSnapshotJob(t *testing.T) {
	reloader := &stubReloader{}
	job := NewReloadSnapshotJob(reloader, 0)

	assert.Equal(t, "reload_snapshot", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, reloader.calls)

	reloader.err = errors.New("store unavailable")
	assert.Error(t, job.Run())
}

func TestCheckDatabaseJob(t *testing.T) {
	job := NewCheckDatabaseJob(nil, zerolog.Nop())
	assert.Equal(t, "check_database", job.Name())
	assert.NoError(t, job.Run())

	db, cleanup := testingpkg.NewTestDB(t, "statements")
	defer cleanup()
	assert.NoError(t, NewCheckDatabaseJob(db, zerolog.Nop()).Run())
}
