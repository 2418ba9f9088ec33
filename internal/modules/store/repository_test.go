package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/statements/internal/domain"
	testingpkg "github.com/aristath/statements/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "statements")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_CreateStatementIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	s := testingpkg.NewStatementFixture("U1", "2024-03-31")

	exists, err := repo.StatementExists(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.False(t, exists)

	id, err := repo.CreateStatement(ctx, s)
	require.NoError(t, err)
	assert.Positive(t, id)

	exists, err = repo.StatementExists(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = repo.CreateStatement(ctx, s)
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	found, err := repo.FindStatementID(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.Equal(t, id, found)

	_, err = repo.FindStatementID(ctx, s.Start, s.End, "U404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRepository_StatementComplete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	s := testingpkg.NewStatementFixture("U1", "2024-03-31")

	complete, err := repo.StatementComplete(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.False(t, complete)

	statementID, err := repo.CreateStatement(ctx, s)
	require.NoError(t, err)

	for _, v := range domain.Variants {
		complete, err = repo.StatementComplete(ctx, s.Start, s.End, s.AccountID)
		require.NoError(t, err)
		assert.False(t, complete, "complete before %s was stored", v)

		_, err = repo.CreateTotals(ctx, statementID, v, domain.Float(1))
		require.NoError(t, err)
	}

	complete, err = repo.StatementComplete(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestRepository_TotalsUniquePerVariant(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	statementID, err := repo.CreateStatement(ctx, testingpkg.NewStatementFixture("U1", "2024-03-31"))
	require.NoError(t, err)

	totalsID, err := repo.CreateTotals(ctx, statementID, domain.VariantRealized, domain.Float(12.5))
	require.NoError(t, err)

	_, err = repo.CreateTotals(ctx, statementID, domain.VariantRealized, nil)
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	_, err = repo.CreateTotals(ctx, statementID, domain.VariantTotal, nil)
	require.NoError(t, err)

	found, err := repo.FindTotalsID(ctx, statementID, domain.VariantRealized)
	require.NoError(t, err)
	assert.Equal(t, totalsID, found)

	_, err = repo.FindTotalsID(ctx, statementID, domain.VariantUnrealized)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRepository_CreateSecuritiesSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	statementID, err := repo.CreateStatement(ctx, testingpkg.NewStatementFixture("U1", "2024-03-31"))
	require.NoError(t, err)
	totalsID, err := repo.CreateTotals(ctx, statementID, domain.VariantTotal, domain.Float(1))
	require.NoError(t, err)

	values := []domain.SecurityValue{
		{Symbol: "AAPL", Value: domain.Float(10)},
		{Symbol: "MSFT", Value: nil},
	}
	n, err := repo.CreateSecurities(ctx, totalsID, values)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CreateSecurities(ctx, totalsID, append(values, domain.SecurityValue{Symbol: "CL", Value: domain.Float(3)}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CreateSecurities(ctx, totalsID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_GetAllRecords(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	fixtures := testingpkg.NewRecordFixtures()
	for _, rec := range fixtures {
		statementID, err := repo.CreateStatement(ctx, rec.Statement)
		require.NoError(t, err)
		for _, v := range domain.Variants {
			totals := rec.Totals(v)
			totalsID, err := repo.CreateTotals(ctx, statementID, v, totals.Value)
			require.NoError(t, err)
			_, err = repo.CreateSecurities(ctx, totalsID, totals.Securities)
			require.NoError(t, err)
		}
	}

	records, err := repo.GetAllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(fixtures))

	for i, rec := range records {
		want := fixtures[i].Statement
		got := rec.Statement
		assert.Positive(t, got.ID)
		got.ID = 0
		assert.Equal(t, want, got)

		for _, v := range domain.Variants {
			totals := rec.Totals(v)
			require.NotNil(t, totals, "%s missing", v)
			assert.Equal(t, *fixtures[i].Totals(v).Value, *totals.Value)
			assert.Len(t, totals.Securities, len(fixtures[i].Totals(v).Securities))
		}
	}

	u2 := records[2].Total
	byName := make(map[string]*float64)
	for _, sv := range u2.Securities {
		byName[sv.Symbol] = sv.Value
	}
	assert.Nil(t, byName["MSFT"])
	require.NotNil(t, byName["CL"])
	assert.Equal(t, 8.0, *byName["CL"])

	n, err := repo.CountStatements(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRepository_WithTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	s := testingpkg.NewStatementFixture("U1", "2024-03-31")

	err := repo.WithTransaction(ctx, func(tx *Repository) error {
		if _, err := tx.CreateStatement(ctx, s); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	exists, err := repo.StatementExists(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.False(t, exists)

	err = repo.WithTransaction(ctx, func(tx *Repository) error {
		_, err := tx.CreateStatement(ctx, s)
		return err
	})
	require.NoError(t, err)

	exists, err = repo.StatementExists(ctx, s.Start, s.End, s.AccountID)
	require.NoError(t, err)
	assert.True(t, exists)
}
