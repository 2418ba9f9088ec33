package statements

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Processor turns a directory of statement exports into prepared tables.
type Processor struct {
	parser *Parser
	nav    *NAVExtractor
	log    zerolog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(log zerolog.Logger) *Processor {
	return &Processor{
		parser: NewParser(log),
		nav:    NewNAVExtractor(log),
		log:    log.With().Str("component", "statement_processor").Logger(),
	}
}

// ProcessFile parses one statement and adds it to prepared.
func (p *Processor) ProcessFile(path string, prepared *Prepared) error {
	parsed, err := p.parser.ParseFile(path)
	if err != nil {
		return err
	}
	nav, err := p.nav.ExtractFile(path)
	if err != nil {
		return err
	}
	if err := prepared.Add(parsed, nav); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ProcessDir processes every .csv statement under dir in name order.
// Statements without trade rows are skipped. A statement that fails to
// parse is logged and left out; the remaining files are still prepared
// and the failures are returned joined alongside the result.
func (p *Processor) ProcessDir(dir string) (*Prepared, error) {
	files, err := ListCSVFiles(dir)
	if err != nil {
		return nil, err
	}

	var errs []error
	prepared := NewPrepared(p.log)
	for _, path := range files {
		err := p.ProcessFile(path, prepared)
		if errors.Is(err, ErrNoTradeData) {
			p.log.Warn().Str("file", path).Msg("Skipping statement without trade data")
			continue
		}
		if err != nil {
			p.log.Error().Err(err).Str("file", path).Msg("Failed to process statement")
			errs = append(errs, err)
		}
	}

	p.log.Info().
		Str("dir", dir).
		Int("files", len(files)).
		Int("statements", prepared.Len()).
		Int("failed", len(errs)).
		Msg("Statements processed")
	return prepared, errors.Join(errs...)
}
