// Package ingestion persists prepared wide tables: it splits each table into
// statement metadata and per-security values and writes the statement, its
// three totals records and their securities, skipping what is already stored.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/statements"
	"github.com/aristath/statements/internal/modules/store"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/aristath/statements/internal/utils"
	"github.com/rs/zerolog"
)

// Prepared is the three prepared tables split into metadata and securities.
// Metadata merges the metadata columns of all three tables, first table wins.
type Prepared struct {
	Metadata   *frame.Frame
	Securities map[domain.Variant]*frame.Frame
}

// Len returns the number of statements.
func (p *Prepared) Len() int {
	return p.Metadata.Len()
}

// Result summarizes one ingestion run.
type Result struct {
	Statements int `json:"statements"`
	Created    int `json:"created"`
	Skipped    int `json:"skipped"`
	Conflicts  int `json:"conflicts"`
}

// Pipeline writes prepared statements to the store.
type Pipeline struct {
	repo   *store.Repository
	schema *widetable.Schema
	atomic bool
	log    zerolog.Logger
}

// NewPipeline creates an ingestion pipeline. With atomic set each statement's
// record tree is written in one transaction.
func NewPipeline(repo *store.Repository, schema *widetable.Schema, atomic bool, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		repo:   repo,
		schema: schema,
		atomic: atomic,
		log:    log.With().Str("service", "ingestion").Logger(),
	}
}

// LoadPrepared reads total.csv, realized_total.csv and unrealized_total.csv
// from dir.
func (p *Pipeline) LoadPrepared(dir string) (*Prepared, error) {
	tables := make(map[domain.Variant]*frame.Frame, len(domain.Variants))
	for _, v := range domain.Variants {
		path := filepath.Join(dir, statements.PreparedFile(v))
		t, err := frame.ReadCSVFile(path, widetable.ColumnType)
		if err != nil {
			return nil, fmt.Errorf("failed to load prepared data: %w", err)
		}
		tables[v] = t
	}
	return p.Split(tables)
}

// Split decomposes the three variant tables. They must describe the same
// statements in the same order.
func (p *Pipeline) Split(tables map[domain.Variant]*frame.Frame) (*Prepared, error) {
	prepared := &Prepared{Securities: make(map[domain.Variant]*frame.Frame, len(domain.Variants))}

	for _, v := range domain.Variants {
		t, ok := tables[v]
		if !ok {
			return nil, fmt.Errorf("missing %s table", v)
		}

		split := widetable.Decompose(t, p.schema)
		if len(split.Dropped) > 0 {
			p.log.Warn().Str("variant", string(v)).Strs("columns", split.Dropped).Msg("Ignoring unrecognized columns")
		}
		prepared.Securities[v] = split.Securities

		if prepared.Metadata == nil {
			prepared.Metadata = split.Metadata
			continue
		}
		merged, err := frame.HConcat(prepared.Metadata, split.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%s table does not line up: %w", v, err)
		}
		prepared.Metadata = merged
	}

	return prepared, nil
}

// Run loads the prepared tables from dir and ingests them.
func (p *Pipeline) Run(ctx context.Context, dir string) (Result, error) {
	prepared, err := p.LoadPrepared(dir)
	if err != nil {
		return Result{}, err
	}
	return p.Ingest(ctx, prepared)
}

// Ingest persists every statement of prepared. Statements stored with all
// of their totals are skipped. A partially stored statement is completed:
// the records it already has are logged as conflicts and kept. Any other
// error stops the run.
func (p *Pipeline) Ingest(ctx context.Context, prepared *Prepared) (Result, error) {
	defer utils.OperationTimer("ingest", p.log)()

	result := Result{Statements: prepared.Len()}
	for i := 0; i < prepared.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s, err := widetable.StatementFromRow(prepared.Metadata.Row(i))
		if err != nil {
			return result, fmt.Errorf("row %d: %w", i+1, err)
		}

		complete, err := p.repo.StatementComplete(ctx, s.Start, s.End, s.AccountID)
		if err != nil {
			return result, err
		}
		if complete {
			result.Skipped++
			p.log.Debug().Str("statement", s.Key()).Msg("Statement already ingested")
			continue
		}

		partial, err := p.repo.StatementExists(ctx, s.Start, s.End, s.AccountID)
		if err != nil {
			return result, err
		}
		if partial {
			p.log.Warn().Str("statement", s.Key()).Msg("Completing partially stored statement")
		}

		var conflicts int
		if p.atomic {
			err = p.repo.WithTransaction(ctx, func(tx *store.Repository) error {
				n, txErr := p.ingestStatement(ctx, tx, prepared, i, s)
				conflicts = n
				return txErr
			})
		} else {
			conflicts, err = p.ingestStatement(ctx, p.repo, prepared, i, s)
		}
		if err != nil {
			return result, fmt.Errorf("failed to ingest statement %s: %w", s.Key(), err)
		}

		result.Created++
		result.Conflicts += conflicts
		p.log.Info().
			Str("account", s.AccountID).
			Str("start", s.Start).
			Str("end", s.End).
			Msg("Statement ingested")
	}

	p.log.Info().
		Int("statements", result.Statements).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("conflicts", result.Conflicts).
		Msg("Ingestion finished")
	return result, nil
}

// ingestStatement writes the statement then, per variant in order
// (realized, unrealized, total), the totals record and its securities.
func (p *Pipeline) ingestStatement(ctx context.Context, repo *store.Repository, prepared *Prepared, i int, s domain.Statement) (int, error) {
	conflicts := 0

	statementID, err := repo.CreateStatement(ctx, s)
	if errors.Is(err, store.ErrAlreadyExists) {
		conflicts++
		p.log.Warn().Str("statement", s.Key()).Msg("Statement already exists")
		statementID, err = repo.FindStatementID(ctx, s.Start, s.End, s.AccountID)
	}
	if err != nil {
		return conflicts, err
	}

	split := widetable.Split{Metadata: prepared.Metadata}
	for _, v := range domain.Variants {
		split.Securities = prepared.Securities[v]

		scalar, err := split.Scalar(i, v)
		if err != nil {
			return conflicts, err
		}

		totalsID, err := repo.CreateTotals(ctx, statementID, v, scalar)
		if errors.Is(err, store.ErrAlreadyExists) {
			conflicts++
			p.log.Warn().Str("statement", s.Key()).Str("variant", string(v)).Msg("Totals already exist")
			totalsID, err = repo.FindTotalsID(ctx, statementID, v)
		}
		if err != nil {
			return conflicts, err
		}

		values := split.SecurityValues(i)
		inserted, err := repo.CreateSecurities(ctx, totalsID, values)
		if err != nil {
			return conflicts, err
		}
		if inserted < len(values) {
			conflicts++
		}
	}

	return conflicts, nil
}
