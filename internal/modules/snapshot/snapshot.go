// Package snapshot holds the immutable, versioned set of wide tables the
// query engine reads from, and swaps it atomically on reload.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/widetable"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotLoaded is returned when no snapshot has been published yet.
var ErrNotLoaded = errors.New("snapshot not loaded")

// Snapshot is one immutable build of the three wide tables.
type Snapshot struct {
	Version  string    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
	Source   string    `json:"source"`
	tables   *widetable.Tables
}

// New wraps tables in a snapshot with a fresh version id.
func New(tables *widetable.Tables, source string) *Snapshot {
	return &Snapshot{
		Version:  uuid.NewString(),
		LoadedAt: time.Now().UTC(),
		Source:   source,
		tables:   tables,
	}
}

// Table returns the wide table of variant v. Callers must not modify it.
func (s *Snapshot) Table(v domain.Variant) *frame.Frame {
	return s.tables.Get(v)
}

// Tables returns the three wide tables.
func (s *Snapshot) Tables() *widetable.Tables {
	return s.tables
}

// Statements returns the number of statements in the snapshot.
func (s *Snapshot) Statements() int {
	return s.tables.Total.Len()
}

// Loader builds a new snapshot.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// RecordSource provides every stored statement record in insertion order.
type RecordSource interface {
	GetAllRecords(ctx context.Context) ([]domain.StatementRecord, error)
}

// StoreLoader reconstructs the wide tables from the store.
type StoreLoader struct {
	source        RecordSource
	reconstructor *widetable.Reconstructor
}

// NewStoreLoader creates a loader reading from source.
func NewStoreLoader(source RecordSource, reconstructor *widetable.Reconstructor) *StoreLoader {
	return &StoreLoader{source: source, reconstructor: reconstructor}
}

// Load fetches all records and rebuilds the tables.
func (l *StoreLoader) Load(ctx context.Context) (*Snapshot, error) {
	records, err := l.source.GetAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statement records: %w", err)
	}
	tables, err := l.reconstructor.Reconstruct(records)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct wide tables: %w", err)
	}
	return New(tables, "store"), nil
}

// Holder publishes the current snapshot. Readers never block; reloads are
// serialized and replace the snapshot only when the new build succeeds.
type Holder struct {
	current atomic.Pointer[Snapshot]
	loader  Loader
	mu      sync.Mutex
	log     zerolog.Logger
}

// NewHolder creates an empty holder backed by loader.
func NewHolder(loader Loader, log zerolog.Logger) *Holder {
	return &Holder{
		loader: loader,
		log:    log.With().Str("service", "snapshot").Logger(),
	}
}

// Current returns the published snapshot.
func (h *Holder) Current() (*Snapshot, error) {
	s := h.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s, nil
}

// Reload builds a new snapshot and publishes it. On failure the previous
// snapshot stays in place.
func (h *Holder) Reload(ctx context.Context) (*Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	s, err := h.loader.Load(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Snapshot reload failed")
		return nil, err
	}

	previous := h.current.Swap(s)
	event := h.log.Info().
		Str("version", s.Version).
		Str("source", s.Source).
		Int("statements", s.Statements()).
		Dur("duration", time.Since(start))
	if previous != nil {
		event = event.Str("previous_version", previous.Version)
	}
	event.Msg("Snapshot published")

	return s, nil
}

// Publish installs s directly.
func (h *Holder) Publish(s *Snapshot) {
	h.current.Store(s)
}
