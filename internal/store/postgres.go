package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mandela-labs/report-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements it
// for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection for the
// hot-path store operations.
var preparedStatements = map[string]string{
	"insert_report":     `INSERT INTO reports (id, url, created_at) VALUES ($1, $2, $3)`,
	"get_report":        `SELECT id, url, created_at FROM reports WHERE id = $1`,
	"insert_snapshot":   `INSERT INTO snapshots (report_id, source, captured_at, url, title, body_text, html) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
	"list_snapshots":    `SELECT id, source, captured_at, url, title, body_text FROM snapshots WHERE report_id = $1 ORDER BY captured_at ASC`,
	"get_snapshot_html": `SELECT id, source, captured_at, url, title, html FROM snapshots WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	id          BIGSERIAL PRIMARY KEY,
	report_id   TEXT NOT NULL REFERENCES reports(id),
	source      TEXT NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL,
	url         TEXT NOT NULL,
	title       TEXT,
	body_text   TEXT,
	html        TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_report_id ON snapshots(report_id);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, id, url string) (*model.Report, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, url, created_at) VALUES ($1, $2, $3)`,
		id, url, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert report")
	}
	return &model.Report{ID: id, URL: url, CreatedAt: now}, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, created_at FROM reports WHERE id = $1`, id,
	)
	var r model.Report
	err := row.Scan(&r.ID, &r.URL, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "postgres: report %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get report")
	}
	return &r, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, reportID string, snap model.Snapshot) (int64, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO snapshots (report_id, source, captured_at, url, title, body_text, html)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		reportID, string(snap.Source), snap.When.UTC(), snap.URL, snap.Title, snap.Text, snap.HTML,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "postgres: insert snapshot for report %s", reportID)
	}
	return id, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, reportID string) ([]model.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, captured_at, url, title, body_text FROM snapshots
		 WHERE report_id = $1 ORDER BY captured_at ASC`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var sn model.Snapshot
		var src string
		if err := rows.Scan(&sn.ID, &src, &sn.When, &sn.URL, &sn.Title, &sn.Text); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		sn.Source = model.Source(src)
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) GetSnapshotHTML(ctx context.Context, snapshotID int64) (*model.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, captured_at, url, title, html FROM snapshots WHERE id = $1`,
		snapshotID,
	)
	var sn model.Snapshot
	var src string
	err := row.Scan(&sn.ID, &src, &sn.When, &sn.URL, &sn.Title, &sn.HTML)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "postgres: snapshot %d", snapshotID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get snapshot html")
	}
	sn.Source = model.Source(src)
	return &sn, nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM snapshots WHERE report_id IN (SELECT id FROM reports WHERE created_at < $1)`,
		cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: purge snapshots")
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM reports WHERE created_at < $1`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge reports")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Compact(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "VACUUM")
	return eris.Wrap(err, "postgres: vacuum")
}
