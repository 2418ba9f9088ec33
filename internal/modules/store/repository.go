// Package store persists statements, their totals records and the
// per-security breakdowns in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aristath/statements/internal/database"
	"github.com/aristath/statements/internal/domain"
	"github.com/aristath/statements/internal/utils"
	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyExists is returned when a write-once record is already stored.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
)

// statementColumns is the column list of the statements table, in scan order.
const statementColumns = `id, statement_start, statement_end, account_name, broker, broker_address,
	date_generated, title, account_holder, account_type, customer_type, account_capabilities,
	base_currency, starting_value, ending_value, realized_pl, change_in_unrealized_pl,
	transferred_pl_adjustments, deposits_and_withdrawals, position_transfers, dividends,
	withholding_tax, dividend_accruals, interest, interest_accruals, other_fee, time_weighted_rr`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Repository handles statement database operations.
type Repository struct {
	db  *sql.DB
	q   querier
	log zerolog.Logger
}

// NewRepository creates a new statement repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		q:   db,
		log: log.With().Str("repo", "statements").Logger(),
	}
}

// WithTransaction runs fn against a repository bound to one transaction.
func (r *Repository) WithTransaction(ctx context.Context, fn func(*Repository) error) error {
	return database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&Repository{db: r.db, q: tx, log: r.log})
	})
}

// StatementExists reports whether a statement with the natural key is stored.
func (r *Repository) StatementExists(ctx context.Context, start, end, account string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM statements WHERE statement_start = ? AND statement_end = ? AND account_name = ?)`,
		start, end, account,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check statement existence: %w", err)
	}
	return exists, nil
}

// StatementComplete reports whether a statement with the natural key is
// stored together with all of its totals records.
func (r *Repository) StatementComplete(ctx context.Context, start, end, account string) (bool, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(t.id) FROM statements s
		JOIN totals t ON t.statement_id = s.id
		WHERE s.statement_start = ? AND s.statement_end = ? AND s.account_name = ?`,
		start, end, account,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check statement completeness: %w", err)
	}
	return n == len(domain.Variants), nil
}

// CreateStatement inserts a statement and returns its id.
func (r *Repository) CreateStatement(ctx context.Context, s domain.Statement) (int64, error) {
	query := `
		INSERT INTO statements
		(statement_start, statement_end, account_name, broker, broker_address,
		 date_generated, title, account_holder, account_type, customer_type,
		 account_capabilities, base_currency, starting_value, ending_value,
		 realized_pl, change_in_unrealized_pl, transferred_pl_adjustments,
		 deposits_and_withdrawals, position_transfers, dividends, withholding_tax,
		 dividend_accruals, interest, interest_accruals, other_fee, time_weighted_rr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	n := s.NAV
	result, err := r.q.ExecContext(ctx, query,
		s.Start, s.End, s.AccountID,
		nullString(s.Broker), nullString(s.BrokerAddress), nullString(s.DateGenerated),
		nullString(s.Title), nullString(s.AccountHolder), nullString(s.AccountType),
		nullString(s.CustomerType), nullString(s.Capabilities), nullString(s.BaseCurrency),
		n.StartingValue, n.EndingValue, n.RealizedPL, n.ChangeInUnrealizedPL,
		n.TransferredPLAdjustments, n.DepositsAndWithdrawals, n.PositionTransfers,
		n.Dividends, n.WithholdingTax, n.DividendAccruals, n.Interest,
		n.InterestAccruals, n.OtherFee, n.TimeWeightedRR,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("statement %s: %w", s.Key(), ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create statement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read statement id: %w", err)
	}

	r.log.Debug().
		Int64("id", id).
		Str("account", s.AccountID).
		Str("start", s.Start).
		Str("end", s.End).
		Msg("Statement created")

	return id, nil
}

// FindStatementID returns the id of the statement with the natural key.
func (r *Repository) FindStatementID(ctx context.Context, start, end, account string) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM statements WHERE statement_start = ? AND statement_end = ? AND account_name = ?`,
		start, end, account,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("statement %s/%s..%s: %w", account, start, end, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find statement: %w", err)
	}
	return id, nil
}

// CreateTotals inserts the totals record of one variant and returns its id.
func (r *Repository) CreateTotals(ctx context.Context, statementID int64, variant domain.Variant, value *float64) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		`INSERT INTO totals (statement_id, variant, value) VALUES (?, ?, ?)`,
		statementID, string(variant), nullFloat64Ptr(value),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%s for statement %d: %w", variant, statementID, ErrAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create %s: %w", variant, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s id: %w", variant, err)
	}
	return id, nil
}

// FindTotalsID returns the id of a statement's totals record of one variant.
func (r *Repository) FindTotalsID(ctx context.Context, statementID int64, variant domain.Variant) (int64, error) {
	var id int64
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM totals WHERE statement_id = ? AND variant = ?`,
		statementID, string(variant),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s for statement %d: %w", variant, statementID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find %s: %w", variant, err)
	}
	return id, nil
}

// CreateSecurities bulk-inserts security values under totalsID. Symbols that
// are already stored for the record are skipped; the number of rows actually
// inserted is returned.
func (r *Repository) CreateSecurities(ctx context.Context, totalsID int64, values []domain.SecurityValue) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}

	stmt, err := r.q.PrepareContext(ctx,
		`INSERT INTO security_values (totals_id, symbol, value) VALUES (?, ?, ?)
		 ON CONFLICT (totals_id, symbol) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare security insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, sv := range values {
		result, err := stmt.ExecContext(ctx, totalsID, sv.Symbol, nullFloat64Ptr(sv.Value))
		if err != nil {
			return inserted, fmt.Errorf("failed to create security %s: %w", sv.Symbol, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if skipped := len(values) - inserted; skipped > 0 {
		r.log.Warn().
			Int64("totals_id", totalsID).
			Int("skipped", skipped).
			Msg("Securities already exist")
	}
	return inserted, nil
}

// CountStatements returns the number of stored statements.
func (r *Repository) CountStatements(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count statements: %w", err)
	}
	return n, nil
}

// GetAllRecords fetches every statement with its three totals records and
// their securities, ordered by insertion. It issues one query per table.
func (r *Repository) GetAllRecords(ctx context.Context) ([]domain.StatementRecord, error) {
	done := utils.MeasureDBQuery("get_all_records", r.log)

	records, byStatement, err := r.loadStatements(ctx)
	if err != nil {
		return nil, err
	}

	byTotals, err := r.loadTotals(ctx, records, byStatement)
	if err != nil {
		return nil, err
	}

	if err := r.loadSecurities(ctx, byTotals); err != nil {
		return nil, err
	}

	done(int64(len(records)))
	return records, nil
}

func (r *Repository) loadStatements(ctx context.Context) ([]domain.StatementRecord, map[int64]int, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+statementColumns+" FROM statements ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	var records []domain.StatementRecord
	byStatement := make(map[int64]int)
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, nil, err
		}
		byStatement[s.ID] = len(records)
		records = append(records, domain.StatementRecord{Statement: s})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating statements: %w", err)
	}
	return records, byStatement, nil
}

func (r *Repository) loadTotals(ctx context.Context, records []domain.StatementRecord, byStatement map[int64]int) (map[int64]*domain.Totals, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, statement_id, variant, value FROM totals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer rows.Close()

	byTotals := make(map[int64]*domain.Totals)
	for rows.Next() {
		var (
			t       domain.Totals
			variant string
			value   sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.StatementID, &variant, &value); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		t.Variant = domain.Variant(variant)
		if value.Valid {
			t.Value = domain.Float(value.Float64)
		}

		idx, ok := byStatement[t.StatementID]
		if !ok {
			continue
		}
		totals := &t
		records[idx].SetTotals(totals)
		byTotals[t.ID] = totals
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating totals: %w", err)
	}
	return byTotals, nil
}

func (r *Repository) loadSecurities(ctx context.Context, byTotals map[int64]*domain.Totals) error {
	rows, err := r.q.QueryContext(ctx, `SELECT id, totals_id, symbol, value FROM security_values ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query security values: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sv    domain.SecurityValue
			value sql.NullFloat64
		)
		if err := rows.Scan(&sv.ID, &sv.TotalsID, &sv.Symbol, &value); err != nil {
			return fmt.Errorf("failed to scan security value: %w", err)
		}
		if value.Valid {
			sv.Value = domain.Float(value.Float64)
		}
		if totals, ok := byTotals[sv.TotalsID]; ok {
			totals.Securities = append(totals.Securities, sv)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating security values: %w", err)
	}
	return nil
}

func scanStatement(rows *sql.Rows) (domain.Statement, error) {
	var (
		s                                           domain.Statement
		broker, address, generated, title, holder   sql.NullString
		accountType, customerType, capabilities, cc sql.NullString
	)
	n := &s.NAV
	err := rows.Scan(
		&s.ID, &s.Start, &s.End, &s.AccountID,
		&broker, &address, &generated, &title, &holder,
		&accountType, &customerType, &capabilities, &cc,
		&n.StartingValue, &n.EndingValue, &n.RealizedPL, &n.ChangeInUnrealizedPL,
		&n.TransferredPLAdjustments, &n.DepositsAndWithdrawals, &n.PositionTransfers,
		&n.Dividends, &n.WithholdingTax, &n.DividendAccruals, &n.Interest,
		&n.InterestAccruals, &n.OtherFee, &n.TimeWeightedRR,
	)
	if err != nil {
		return domain.Statement{}, fmt.Errorf("failed to scan statement: %w", err)
	}

	s.Broker = broker.String
	s.BrokerAddress = address.String
	s.DateGenerated = generated.String
	s.Title = title.String
	s.AccountHolder = holder.String
	s.AccountType = accountType.String
	s.CustomerType = customerType.String
	s.Capabilities = capabilities.String
	s.BaseCurrency = cc.String
	return s, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat64Ptr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
