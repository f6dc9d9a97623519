package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/foodshed/siteplan/internal/db"
	"github.com/foodshed/siteplan/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, mainly for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	name       TEXT PRIMARY KEY,
	cell_count INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cells (
	dataset             TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
	id                  TEXT NOT NULL,
	lat                 DOUBLE PRECISION NOT NULL,
	lon                 DOUBLE PRECISION NOT NULL,
	population          INTEGER NOT NULL,
	risk_score          DOUBLE PRECISION NOT NULL,
	poverty_rate        DOUBLE PRECISION NOT NULL,
	benefit_rate        DOUBLE PRECISION NOT NULL,
	vehicle_access_rate DOUBLE PRECISION NOT NULL,
	need_index          DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (dataset, id)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset    TEXT NOT NULL,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cells_dataset ON cells(dataset);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
`

// cellColumns matches the COPY column order in SaveDataset.
var cellColumns = []string{
	"dataset", "id", "lat", "lon", "population",
	"risk_score", "poverty_rate", "benefit_rate", "vehicle_access_rate", "need_index",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveDataset replaces the named dataset. Cells load through the COPY
// protocol.
func (s *PostgresStore) SaveDataset(ctx context.Context, name string, cells []model.Cell) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE name = $1`, name); err != nil {
		return eris.Wrapf(err, "postgres: clear dataset %s", name)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO datasets (name, cell_count, created_at) VALUES ($1, $2, $3)`,
		name, len(cells), time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "postgres: insert dataset %s", name)
	}

	rows := make([][]any, len(cells))
	for i, c := range cells {
		rows[i] = []any{
			name, c.ID, c.Lat, c.Lon, c.Population,
			c.RiskScore, c.PovertyRate, c.BenefitRate, c.VehicleAccessRate, c.NeedIndex,
		}
	}
	_, err := db.CopyFrom(ctx, s.pool, "cells", cellColumns, rows)
	return err
}

func (s *PostgresStore) GetDataset(ctx context.Context, name string) ([]model.Cell, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT cell_count FROM datasets WHERE name = $1`, name).Scan(&count)
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: dataset %s", name)
		}
		return nil, eris.Wrapf(err, "postgres: get dataset %s", name)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, lat, lon, population, risk_score, poverty_rate, benefit_rate, vehicle_access_rate, need_index
		 FROM cells WHERE dataset = $1 ORDER BY id`, name)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query cells %s", name)
	}
	defer rows.Close()

	cells := make([]model.Cell, 0, count)
	for rows.Next() {
		var c model.Cell
		if err := rows.Scan(&c.ID, &c.Lat, &c.Lon, &c.Population,
			&c.RiskScore, &c.PovertyRate, &c.BenefitRate, &c.VehicleAccessRate, &c.NeedIndex); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cell")
		}
		cells = append(cells, c)
	}
	return cells, eris.Wrap(rows.Err(), "postgres: iterate cells")
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.name, d.cell_count, COALESCE(SUM(c.population), 0)::INTEGER, d.created_at
		 FROM datasets d LEFT JOIN cells c ON c.dataset = d.name
		 GROUP BY d.name, d.cell_count, d.created_at
		 ORDER BY d.name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list datasets")
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var d DatasetInfo
		if err := rows.Scan(&d.Name, &d.CellCount, &d.Population, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dataset")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate datasets")
}

func (s *PostgresStore) DeleteDataset(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dataset %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "dataset %s", name)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, dataset string, req model.Request) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, dataset, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, dataset, reqJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Dataset:   dataset,
		Request:   req,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.OptimizationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	status := model.RunStatusComplete
	if result.Status == model.StatusError {
		status = model.RunStatusFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var reqJSON []byte
	var resultJSON *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, dataset, request, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Dataset, &reqJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if resultJSON != nil {
		r.Result = &model.OptimizationResult{}
		if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, dataset, request, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Dataset != "" {
		query += fmt.Sprintf(` AND dataset = $%d`, argIdx)
		args = append(args, filter.Dataset)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var reqJSON []byte
		var resultJSON *[]byte

		if err := rows.Scan(&r.ID, &r.Dataset, &reqJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal request")
		}
		if resultJSON != nil {
			r.Result = &model.OptimizationResult{}
			if err := json.Unmarshal(*resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
