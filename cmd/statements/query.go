package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aristath/statements/internal/modules/analytics"
	"github.com/aristath/statements/internal/utils"
	"github.com/google/subcommands"
)

type queryCmd struct {
	*app
	accounts string
	security string
	start    string
	end      string
	pnlType  string
}

func (*queryCmd) Name() string { return "query" }
func (*queryCmd) Synopsis() string {
	return "runs an analytics query against the stored statements"
}
func (*queryCmd) Usage() string {
	return `statements query <accounts|securities|cards|rankings|series> [flags]

  Answers the same queries as the HTTP API from a fresh snapshot of the
  database and prints the result as JSON.

Usage Examples:
$ statements query cards -accounts U1234567 -end 2024-03-31
$ statements query series -security AAPL -pnl realized_total

`
}

func (c *queryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.accounts, "accounts", "", "Comma-separated account ids")
	f.StringVar(&c.security, "security", "", "Security symbol (series)")
	f.StringVar(&c.start, "start", "", "Start date (series)")
	f.StringVar(&c.end, "end", "", "End date")
	f.StringVar(&c.pnlType, "pnl", "", "total, realized_total or unrealized_total")
}

func (c *queryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: query takes exactly one query name")
		return subcommands.ExitUsageError
	}

	container, _, err := c.wire(ctx)
	if err != nil {
		return c.fail(err, "Failed to wire dependencies")
	}
	defer container.Close()

	svc := container.AnalyticsService
	if _, err := svc.Reload(ctx); err != nil {
		return c.fail(err, "Failed to load snapshot")
	}

	filter := analytics.Filter{
		Accounts:  utils.ParseCSV(c.accounts),
		Security:  c.security,
		StartDate: c.start,
		EndDate:   c.end,
		PnlType:   c.pnlType,
	}

	var result interface{}
	switch f.Arg(0) {
	case "accounts":
		result, err = svc.ListAccounts()
	case "securities":
		result, err = svc.ListSecurities()
	case "cards":
		result, err = svc.CardData(filter)
	case "rankings":
		result, err = svc.TopDownBottomUp(filter)
	case "series":
		result, err = svc.GraphData(filter)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown query %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	if err != nil {
		return c.fail(err, "Query failed")
	}

	if err := c.printJSON(result); err != nil {
		return c.fail(err, "Failed to print result")
	}
	return subcommands.ExitSuccess
}
