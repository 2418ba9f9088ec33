package scheduler

import (
	"context"
	"time"

	"github.com/aristath/statements/internal/modules/snapshot"
)

// SnapshotReloader is satisfied by snapshot.Holder.
type SnapshotReloader interface {
	Reload(ctx context.Context) (*snapshot.Snapshot, error)
}

// ReloadSnapshotJob rebuilds the served wide tables so statements ingested
// by another process become visible.
type ReloadSnapshotJob struct {
	holder  SnapshotReloader
	timeout time.Duration
}

// NewReloadSnapshotJob creates a reload job. A zero timeout means one minute.
func NewReloadSnapshotJob(holder SnapshotReloader, timeout time.Duration) *ReloadSnapshotJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ReloadSnapshotJob{holder: holder, timeout: timeout}
}

// Name returns the job name
func (j *ReloadSnapshotJob) Name() string {
	return "reload_snapshot"
}

// Run reloads the snapshot
func (j *ReloadSnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	_, err := j.holder.Reload(ctx)
	return err
}
