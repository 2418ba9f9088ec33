package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/statements/internal/clients/objectstore"
	"github.com/aristath/statements/internal/modules/snapshot"
	"github.com/aristath/statements/internal/modules/statements"
	"github.com/google/subcommands"
)

type parseCmd struct {
	*app
	tradesDir   string
	preparedDir string
	sync        bool
}

func (*parseCmd) Name() string { return "parse" }
func (*parseCmd) Synopsis() string {
	return "parses raw statement exports into the prepared wide tables"
}
func (*parseCmd) Usage() string {
	return `statements parse [-trades <dir>] [-prepared <dir>] [-sync]

  Reads every .csv statement export in the trades directory and writes
  total.csv, realized_total.csv and unrealized_total.csv to the prepared
  directory. With -sync, new exports are first downloaded from the bucket.
  Exports that fail to parse are reported and the command exits non-zero,
  but the tables of the remaining exports are still written.

`
}

func (c *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tradesDir, "trades", "", "Statement exports directory (default STATEMENTS_TRADES_DIR)")
	f.StringVar(&c.preparedDir, "prepared", "", "Prepared tables directory (default STATEMENTS_PREPARED_DIR)")
	f.BoolVar(&c.sync, "sync", false, "Download statement exports from the bucket first")
}

func (c *parseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tradesDir := orDefault(c.tradesDir, c.cfg.TradesDir)
	preparedDir := orDefault(c.preparedDir, c.cfg.PreparedDir)

	if c.sync {
		if !c.cfg.Bucket.Enabled() {
			fmt.Fprintln(os.Stderr, "Error: -sync requires STATEMENTS_BUCKET")
			return subcommands.ExitUsageError
		}
		store, err := objectstore.New(ctx, c.cfg.Bucket.ObjectStore(), c.log)
		if err != nil {
			return c.fail(err, "Failed to create object store client")
		}
		if err := os.MkdirAll(tradesDir, 0755); err != nil {
			return c.fail(err, "Failed to create trades directory")
		}
		if _, err := store.SyncCSV(ctx, tradesDir); err != nil {
			return c.fail(err, "Failed to sync statement exports")
		}
	}

	prepared, procErr := statements.NewProcessor(c.log).ProcessDir(tradesDir)
	if prepared == nil {
		return c.fail(procErr, "Failed to process statements")
	}
	// The statements that did parse are written even when others failed.
	if err := prepared.WriteDir(preparedDir); err != nil {
		return c.fail(err, "Failed to write prepared tables")
	}

	fmt.Fprintf(c.out, "Prepared %d statements in %s\n", prepared.Len(), preparedDir)
	if procErr != nil {
		return c.fail(procErr, "Some statements could not be processed")
	}
	return subcommands.ExitSuccess
}

type ingestCmd struct {
	*app
	preparedDir string
	atomic      bool
}

func (*ingestCmd) Name() string { return "ingest" }
func (*ingestCmd) Synopsis() string {
	return "stores the prepared wide tables in the statements database"
}
func (*ingestCmd) Usage() string {
	return `statements ingest [-prepared <dir>] [-atomic]

  Splits the prepared tables into statements, totals and security values
  and writes them to the database. Statements already stored in full are
  skipped; a partially stored statement is completed.
  Prints the ingestion summary as JSON.

`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.preparedDir, "prepared", "", "Prepared tables directory (default STATEMENTS_PREPARED_DIR)")
	f.BoolVar(&c.atomic, "atomic", false, "Write each statement in one transaction (overrides INGEST_ATOMIC)")
}

func (c *ingestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.atomic {
		c.cfg.IngestAtomic = true
	}

	container, _, err := c.wire(ctx)
	if err != nil {
		return c.fail(err, "Failed to wire dependencies")
	}
	defer container.Close()

	result, err := container.Pipeline.Run(ctx, orDefault(c.preparedDir, c.cfg.PreparedDir))
	if err != nil {
		return c.fail(err, "Ingestion failed")
	}
	if err := c.printJSON(result); err != nil {
		return c.fail(err, "Failed to print result")
	}
	return subcommands.ExitSuccess
}

type snapshotCmd struct {
	*app
	output string
	upload bool
}

func (*snapshotCmd) Name() string { return "snapshot" }
func (*snapshotCmd) Synopsis() string {
	return "exports the reconstructed wide tables as a snapshot file"
}
func (*snapshotCmd) Usage() string {
	return `statements snapshot [-o <file>] [-upload]

  Rebuilds the three wide tables from the database and writes them to a
  snapshot file the server can load with SNAPSHOT_FILE. With -upload the
  file is also copied to the bucket.

`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Snapshot file (default SNAPSHOT_FILE or <data dir>/snapshot.msgpack)")
	f.BoolVar(&c.upload, "upload", false, "Upload the snapshot file to the bucket")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	output := orDefault(c.output, orDefault(c.cfg.SnapshotFile, filepath.Join(c.cfg.DataDir, "snapshot.msgpack")))
	if c.upload && !c.cfg.Bucket.Enabled() {
		fmt.Fprintln(os.Stderr, "Error: -upload requires STATEMENTS_BUCKET")
		return subcommands.ExitUsageError
	}

	// Always read the store, even when the server is configured for a file.
	c.cfg.SnapshotFile = ""
	container, _, err := c.wire(ctx)
	if err != nil {
		return c.fail(err, "Failed to wire dependencies")
	}
	defer container.Close()

	snap, err := snapshot.NewStoreLoader(container.Repository, container.Reconstructor).Load(ctx)
	if err != nil {
		return c.fail(err, "Failed to build snapshot")
	}
	if err := snapshot.WriteFile(output, snap); err != nil {
		return c.fail(err, "Failed to write snapshot")
	}

	if c.upload {
		if err := container.ObjectStore.UploadFile(ctx, filepath.Base(output), output); err != nil {
			return c.fail(err, "Failed to upload snapshot")
		}
	}

	fmt.Fprintf(c.out, "Snapshot %s with %d statements written to %s\n", snap.Version, snap.Statements(), output)
	return subcommands.ExitSuccess
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
