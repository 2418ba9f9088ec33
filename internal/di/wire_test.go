package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aristath/statements/internal/config"
	"github.com/aristath/statements/internal/modules/snapshot"
	"github.com/aristath/statements/internal/scheduler"
	testingpkg "github.com/aristath/statements/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	tmpDir := t.TempDir()
	return &config.Config{
		DataDir:             tmpDir,
		DBPath:              filepath.Join(tmpDir, "statements.db"),
		TradesDir:           filepath.Join(tmpDir, "trades"),
		PreparedDir:         filepath.Join(tmpDir, "prepared"),
		Port:                8000,
		MaintenanceSchedule: "0 0 3 * * SUN",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	sched := scheduler.New(zerolog.Nop())

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop(), sched)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.DB)
	assert.NotNil(t, container.Repository)
	assert.NotNil(t, container.Pipeline)
	assert.NotNil(t, container.SnapshotHolder)
	assert.NotNil(t, container.AnalyticsService)
	assert.Nil(t, container.ObjectStore)
	assert.Nil(t, container.BackupService)

	assert.NotNil(t, jobs.ReloadSnapshot)
	assert.NotNil(t, jobs.CheckDatabase)
	assert.NotNil(t, jobs.Maintenance)
	assert.Nil(t, jobs.Backup)

	registered := sched.Jobs()
	require.Len(t, registered, 3)
	assert.Equal(t, "check_database", registered[0].Name)
	assert.Empty(t, registered[0].Schedule)
	assert.Equal(t, "maintenance", registered[1].Name)
	assert.Equal(t, "0 0 3 * * SUN", registered[1].Schedule)
	assert.Equal(t, "reload_snapshot", registered[2].Name)
	assert.Empty(t, registered[2].Schedule)

	// the store loader sees records ingested through the repository
	ctx := context.Background()
	_, err = container.Repository.CreateStatement(ctx, testingpkg.NewStatementFixture("U1", "2024-03-31"))
	require.NoError(t, err)
	require.NoError(t, sched.Run("check_database"))
	assert.Equal(t, 1, sched.Jobs()[0].Runs)
}

func TestWire_SnapshotFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.SnapshotFile = filepath.Join(cfg.DataDir, "latest.msgpack")
	require.NoError(t, snapshot.WriteFile(cfg.SnapshotFile, snapshot.New(testingpkg.NewTablesFixture(), "store")))

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	require.NoError(t, jobs.ReloadSnapshot.Run())
	accounts, err := container.AnalyticsService.ListAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"U1", "U2"}, accounts)
}

func TestRegisterJobs_RejectsNilContainer(t *testing.T) {
	_, err := RegisterJobs(nil, testConfig(t), nil, zerolog.Nop())
	assert.Error(t, err)
}
