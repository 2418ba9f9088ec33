package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/frame"
	"github.com/aristath/statements/internal/modules/snapshot"
	"github.com/aristath/statements/internal/utils"
	"github.com/rs/zerolog"
)

// Filter is the query filter sent by clients.
type Filter struct {
	Accounts  []string `json:"accounts"`
	Security  string   `json:"security"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	PnlType   string   `json:"pnl_type"`
}

// Normalize uppercases accounts and security and lowercases pnl_type.
func (f Filter) Normalize() Filter {
	return Filter{
		Accounts:  utils.UpperAll(f.Accounts),
		Security:  strings.ToUpper(strings.TrimSpace(f.Security)),
		StartDate: strings.TrimSpace(f.StartDate),
		EndDate:   strings.TrimSpace(f.EndDate),
		PnlType:   strings.ToLower(strings.TrimSpace(f.PnlType)),
	}
}

// Variant resolves pnl_type to a wide table. An empty pnl_type selects total.
func (f Filter) Variant() (domain.Variant, error) {
	if f.PnlType == "" {
		return domain.VariantTotal, nil
	}
	v, err := domain.ParseVariant(f.PnlType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return v, nil
}

// CardData bundles the five headline metrics.
type CardData struct {
	TotalGains      float64 `json:"total_gains"`
	RealizedGains   float64 `json:"realized_gains"`
	UnrealizedGains float64 `json:"unrealized_gains"`
	Interest        float64 `json:"interest"`
	Dividends       float64 `json:"dividends"`
}

// Rankings holds both security rankings for one filter.
type Rankings struct {
	TopDown  []Ranked `json:"top_down"`
	BottomUp []Ranked `json:"bottom_up"`
}

// SnapshotInfo describes the snapshot currently served.
type SnapshotInfo struct {
	Version    string    `json:"version"`
	LoadedAt   time.Time `json:"loaded_at"`
	Source     string    `json:"source"`
	Statements int       `json:"statements"`
}

// SnapshotHolder is satisfied by snapshot.Holder.
type SnapshotHolder interface {
	Current() (*snapshot.Snapshot, error)
	Reload(ctx context.Context) (*snapshot.Snapshot, error)
}

// Service answers filter queries against the current snapshot.
type Service struct {
	engine *Engine
	holder SnapshotHolder
	log    zerolog.Logger
}

// NewService creates an analytics service
func NewService(engine *Engine, holder SnapshotHolder, log zerolog.Logger) *Service {
	return &Service{
		engine: engine,
		holder: holder,
		log:    log.With().Str("service", "analytics").Logger(),
	}
}

// ListAccounts returns the accounts present in the total table.
func (s *Service) ListAccounts() ([]string, error) {
	t, err := s.table(domain.VariantTotal)
	if err != nil {
		return nil, err
	}
	return s.engine.Accounts(t), nil
}

// ListSecurities returns the securities present in the total table.
func (s *Service) ListSecurities() ([]string, error) {
	t, err := s.table(domain.VariantTotal)
	if err != nil {
		return nil, err
	}
	return s.engine.Securities(t), nil
}

// CardData computes the headline metrics on the total table at EndDate.
func (s *Service) CardData(f Filter) (*CardData, error) {
	f = f.Normalize()
	t, err := s.table(domain.VariantTotal)
	if err != nil {
		return nil, err
	}

	var data CardData
	metrics := []struct {
		name string
		fn   func(*frame.Frame, []string, string) (float64, error)
		dst  *float64
	}{
		{"total_gains", s.engine.TotalGains, &data.TotalGains},
		{"realized_gains", s.engine.RealizedGains, &data.RealizedGains},
		{"unrealized_gains", s.engine.UnrealizedGains, &data.UnrealizedGains},
		{"interest", s.engine.Interest, &data.Interest},
		{"dividends", s.engine.Dividends, &data.Dividends},
	}
	for _, m := range metrics {
		v, err := m.fn(t, f.Accounts, f.EndDate)
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s: %w", m.name, err)
		}
		*m.dst = v
	}

	s.log.Debug().
		Strs("accounts", f.Accounts).
		Str("end_date", f.EndDate).
		Float64("total_gains", data.TotalGains).
		Msg("Computed card data")
	return &data, nil
}

// GraphData returns the time series of Security in the pnl_type table.
func (s *Service) GraphData(f Filter) (*Series, error) {
	f = f.Normalize()
	v, err := f.Variant()
	if err != nil {
		return nil, err
	}
	t, err := s.table(v)
	if err != nil {
		return nil, err
	}
	series, err := s.engine.TimeSeries(t, f.Security, f.Accounts, f.StartDate, f.EndDate)
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// TopDownBottomUp ranks securities in the pnl_type table at EndDate.
func (s *Service) TopDownBottomUp(f Filter) (*Rankings, error) {
	f = f.Normalize()
	v, err := f.Variant()
	if err != nil {
		return nil, err
	}
	t, err := s.table(v)
	if err != nil {
		return nil, err
	}

	top, err := s.engine.TopDown(t, f.Accounts, f.EndDate)
	if err != nil {
		return nil, err
	}
	bottom, err := s.engine.BottomUp(t, f.Accounts, f.EndDate)
	if err != nil {
		return nil, err
	}
	return &Rankings{TopDown: top, BottomUp: bottom}, nil
}

// Snapshot describes the snapshot currently served.
func (s *Service) Snapshot() (*SnapshotInfo, error) {
	snap, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	return describe(snap), nil
}

// Reload rebuilds the snapshot and returns the new one's description.
func (s *Service) Reload(ctx context.Context) (*SnapshotInfo, error) {
	snap, err := s.holder.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload snapshot: %w", err)
	}
	return describe(snap), nil
}

func (s *Service) table(v domain.Variant) (*frame.Frame, error) {
	snap, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	return snap.Table(v), nil
}

func describe(s *snapshot.Snapshot) *SnapshotInfo {
	return &SnapshotInfo{
		Version:    s.Version,
		LoadedAt:   s.LoadedAt,
		Source:     s.Source,
		Statements: s.Statements(),
	}
}
