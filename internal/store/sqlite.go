package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/foodshed/siteplan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS datasets (
	name       TEXT PRIMARY KEY,
	cell_count INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cells (
	dataset             TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
	id                  TEXT NOT NULL,
	lat                 REAL NOT NULL,
	lon                 REAL NOT NULL,
	population          INTEGER NOT NULL,
	risk_score          REAL NOT NULL,
	poverty_rate        REAL NOT NULL,
	benefit_rate        REAL NOT NULL,
	vehicle_access_rate REAL NOT NULL,
	need_index          REAL NOT NULL,
	PRIMARY KEY (dataset, id)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	request    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cells_dataset ON cells(dataset);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveDataset replaces the named dataset atomically.
func (s *SQLiteStore) SaveDataset(ctx context.Context, name string, cells []model.Cell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name); err != nil {
		return eris.Wrapf(err, "sqlite: clear dataset %s", name)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (name, cell_count, created_at) VALUES (?, ?, ?)`,
		name, len(cells), time.Now().UTC(),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert dataset %s", name)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (dataset, id, lat, lon, population, risk_score, poverty_rate, benefit_rate, vehicle_access_rate, need_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare cell insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range cells {
		if _, err := stmt.ExecContext(ctx,
			name, c.ID, c.Lat, c.Lon, c.Population,
			c.RiskScore, c.PovertyRate, c.BenefitRate, c.VehicleAccessRate, c.NeedIndex,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert cell %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit dataset")
}

func (s *SQLiteStore) GetDataset(ctx context.Context, name string) ([]model.Cell, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT cell_count FROM datasets WHERE name = ?`, name).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: dataset %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dataset %s", name)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lat, lon, population, risk_score, poverty_rate, benefit_rate, vehicle_access_rate, need_index
		 FROM cells WHERE dataset = ? ORDER BY id`, name)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query cells %s", name)
	}
	defer rows.Close() //nolint:errcheck

	cells := make([]model.Cell, 0, count)
	for rows.Next() {
		var c model.Cell
		if err := rows.Scan(&c.ID, &c.Lat, &c.Lon, &c.Population,
			&c.RiskScore, &c.PovertyRate, &c.BenefitRate, &c.VehicleAccessRate, &c.NeedIndex); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		cells = append(cells, c)
	}
	return cells, eris.Wrap(rows.Err(), "sqlite: iterate cells")
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.name, d.cell_count, COALESCE(SUM(c.population), 0), d.created_at
		 FROM datasets d LEFT JOIN cells c ON c.dataset = d.name
		 GROUP BY d.name, d.cell_count, d.created_at
		 ORDER BY d.name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list datasets")
	}
	defer rows.Close() //nolint:errcheck

	var out []DatasetInfo
	for rows.Next() {
		var d DatasetInfo
		if err := rows.Scan(&d.Name, &d.CellCount, &d.Population, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dataset")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate datasets")
}

func (s *SQLiteStore) DeleteDataset(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete dataset %s", name)
	}
	return checkRowsAffected(res, "dataset", name)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, dataset string, req model.Request) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, request, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, dataset, string(reqJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.OptimizationResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	status := model.RunStatusComplete
	if result.Status == model.StatusError {
		status = model.RunStatusFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, request, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, dataset, request, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var reqJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Dataset, &reqJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(reqJSON), &r.Request); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal request")
	}
	if resultJSON.Valid {
		r.Result = &model.OptimizationResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
