// Command statements prepares brokerage statement exports, ingests them into
// the statements database and exports query snapshots and backups.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aristath/statements/internal/config"
	"github.com/aristath/statements/internal/di"
	"github.com/aristath/statements/pkg/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

var logLevel = flag.String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

// app is shared by every command.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	out io.Writer
}

// wire opens the database and builds the services. Commands run jobs
// directly, so no scheduler is attached.
func (a *app) wire(ctx context.Context) (*di.Container, *di.JobInstances, error) {
	return di.Wire(ctx, a.cfg, a.log, nil)
}

// printJSON writes v to the command output.
func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// fail logs err and returns the failure exit status.
func (a *app) fail(err error, msg string) subcommands.ExitStatus {
	a.log.Error().Err(err).Msg(msg)
	return subcommands.ExitFailure
}

func register(commander *subcommands.Commander, a *app) {
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&parseCmd{app: a}, "pipeline")
	commander.Register(&ingestCmd{app: a}, "pipeline")
	commander.Register(&snapshotCmd{app: a}, "pipeline")
	commander.Register(&queryCmd{app: a}, "analytics")
	commander.Register(&backupCmd{app: a}, "maintenance")
	commander.Register(&maintenanceCmd{app: a}, "maintenance")
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	a := &app{
		cfg: cfg,
		log: logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true}),
		out: os.Stdout,
	}
	register(commander, a)

	os.Exit(int(commander.Execute(context.Background())))
}
