package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/statements/internal/scheduler"
	"github.com/google/subcommands"
)

type backupCmd struct {
	*app
	list      bool
	retention int
}

func (*backupCmd) Name() string { return "backup" }
func (*backupCmd) Synopsis() string {
	return "archives the statements database into the bucket"
}
func (*backupCmd) Usage() string {
	return `statements backup [-list] [-retention <days>]

  Copies the database, uploads a compressed archive to the bucket and
  removes archives older than the retention period. The newest archives
  are always kept. With -list, only prints the archives in the bucket.

`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "List backups instead of creating one")
	f.IntVar(&c.retention, "retention", -1, "Retention in days (default BACKUP_RETENTION_DAYS, 0 keeps everything)")
}

func (c *backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.cfg.Bucket.Enabled() {
		fmt.Fprintln(os.Stderr, "Error: backup requires STATEMENTS_BUCKET")
		return subcommands.ExitUsageError
	}

	container, _, err := c.wire(ctx)
	if err != nil {
		return c.fail(err, "Failed to wire dependencies")
	}
	defer container.Close()

	svc := container.BackupService
	if c.list {
		backups, err := svc.ListBackups(ctx)
		if err != nil {
			return c.fail(err, "Failed to list backups")
		}
		if err := c.printJSON(backups); err != nil {
			return c.fail(err, "Failed to print backups")
		}
		return subcommands.ExitSuccess
	}

	info, err := svc.CreateAndUpload(ctx)
	if err != nil {
		return c.fail(err, "Backup failed")
	}

	retention := c.cfg.BackupRetentionDays
	if c.retention >= 0 {
		retention = c.retention
	}
	deleted, err := svc.RotateOldBackups(ctx, retention)
	if err != nil {
		c.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	fmt.Fprintf(c.out, "Uploaded %s (%d bytes), removed %d old backups\n", info.Key, info.SizeBytes, deleted)
	return subcommands.ExitSuccess
}

type maintenanceCmd struct {
	*app
}

func (*maintenanceCmd) Name() string { return "maintenance" }
func (*maintenanceCmd) Synopsis() string {
	return "checks the database and reclaims space"
}
func (*maintenanceCmd) Usage() string {
	return `statements maintenance

  Runs the integrity check, then checkpoints the WAL and vacuums the
  database, the same jobs the server schedules.

`
}

func (c *maintenanceCmd) SetFlags(*flag.FlagSet) {}

func (c *maintenanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, jobs, err := c.wire(ctx)
	if err != nil {
		return c.fail(err, "Failed to wire dependencies")
	}
	defer container.Close()

	for _, job := range []scheduler.Job{jobs.CheckDatabase, jobs.Maintenance} {
		if err := job.Run(); err != nil {
			return c.fail(err, "Job "+job.Name()+" failed")
		}
		fmt.Fprintf(c.out, "%s: ok\n", job.Name())
	}
	return subcommands.ExitSuccess
}
