// Package store persists cell datasets and optimization runs. Two backends
// implement the same interface: SQLite for single-user CLI use and Postgres
// for the planning server.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
)

// DatasetInfo summarizes a stored dataset without loading its cells.
type DatasetInfo struct {
	Name       string    `json:"name"`
	CellCount  int       `json:"cell_count"`
	Population int       `json:"population"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Dataset string          `json:"dataset,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for datasets and runs.
type Store interface {
	// Datasets
	SaveDataset(ctx context.Context, name string, cells []model.Cell) error
	GetDataset(ctx context.Context, name string) ([]model.Cell, error)
	ListDatasets(ctx context.Context) ([]DatasetInfo, error)
	DeleteDataset(ctx context.Context, name string) error

	// Runs
	CreateRun(ctx context.Context, dataset string, req model.Request) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.OptimizationResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a dataset or run does not exist.
var ErrNotFound = eris.New("not found")

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
