package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
)

func configWithDriver(driver string) config.StoreConfig {
	return config.StoreConfig{Driver: driver}
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCells() []model.Cell {
	return []model.Cell{
		{ID: "484530011001", Lat: 30.27, Lon: -97.74, Population: 1200, RiskScore: 4.2, PovertyRate: 0.2, BenefitRate: 0.25, VehicleAccessRate: 0.9, NeedIndex: 640},
		{ID: "484530011002", Lat: 30.28, Lon: -97.75, Population: 800, RiskScore: 2.1, PovertyRate: 0.1, BenefitRate: 0.1, VehicleAccessRate: 0.95, NeedIndex: 210},
	}
}

func TestSQLiteDatasetRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDataset(ctx, "travis", testCells()))

	got, err := s.GetDataset(ctx, "travis")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testCells(), got)

	infos, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "travis", infos[0].Name)
	assert.Equal(t, 2, infos[0].CellCount)
	assert.Equal(t, 2000, infos[0].Population)
	assert.False(t, infos[0].CreatedAt.IsZero())
}

func TestSQLiteSaveDatasetReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDataset(ctx, "travis", testCells()))
	require.NoError(t, s.SaveDataset(ctx, "travis", testCells()[:1]))

	got, err := s.GetDataset(ctx, "travis")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteGetDatasetNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetDataset(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteDeleteDataset(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDataset(ctx, "travis", testCells()))
	require.NoError(t, s.DeleteDataset(ctx, "travis"))

	_, err := s.GetDataset(ctx, "travis")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteDataset(ctx, "travis"), ErrNotFound)
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	req := model.Request{TotalBudget: 1_000_000, MaxDepots: 2}
	run, err := s.CreateRun(ctx, "travis", req)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	result := &model.OptimizationResult{
		Status:              model.StatusSuccess,
		Facilities:          []model.Facility{},
		TotalExpectedImpact: 480,
		BudgetUsed:          250000,
		CoveragePercentage:  75,
	}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, "travis", got.Dataset)
	assert.Equal(t, req.TotalBudget, got.Request.TotalBudget)
	require.NotNil(t, got.Result)
	assert.Equal(t, 480, got.Result.TotalExpectedImpact)
}

func TestSQLiteFailedRunResult(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "travis", model.Request{TotalBudget: 100})
	require.NoError(t, err)

	result := &model.OptimizationResult{Status: model.StatusError, Reason: "bad weights"}
	require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "bad weights", got.Result.Reason)
}

func TestSQLiteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateRunStatus(ctx, "missing", model.RunStatusRunning), ErrNotFound)
}

func TestSQLiteListRunsFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, "travis", model.Request{TotalBudget: 1})
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "harris", model.Request{TotalBudget: 2})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRunStatus(ctx, a.ID, model.RunStatusRunning))

	running, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, a.ID, running[0].ID)

	travis, err := s.ListRuns(ctx, RunFilter{Dataset: "travis"})
	require.NoError(t, err)
	require.Len(t, travis, 1)

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), configWithDriver("mysql"))
	assert.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	cfg := configWithDriver("sqlite")
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "open.db")
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
