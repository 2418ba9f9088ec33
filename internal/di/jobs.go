// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/aristath/statements/internal/config"
	"github.com/aristath/statements/internal/reliability"
	"github.com/aristath/statements/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the background jobs and registers every one with
// sched for on-request runs; jobs with a configured schedule also fire on it.
// Without a scheduler the instances are returned for direct use.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		ReloadSnapshot: scheduler.NewReloadSnapshotJob(container.SnapshotHolder, 0),
		CheckDatabase:  scheduler.NewCheckDatabaseJob(container.DB, log),
		Maintenance:    reliability.NewMaintenanceJob(container.DB, cfg.DataDir, true, log),
	}
	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.BackupRetentionDays, log)
	}

	if sched == nil {
		return instances, nil
	}

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.SnapshotReloadSchedule, instances.ReloadSnapshot},
		{"", instances.CheckDatabase},
		{cfg.MaintenanceSchedule, instances.Maintenance},
		{cfg.BackupSchedule, instances.Backup},
	}
	for _, r := range registrations {
		if r.job == nil {
			continue
		}
		if err := sched.AddJob(r.schedule, r.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", r.job.Name(), err)
		}
	}

	return instances, nil
}
