package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mandela-labs/report-cli/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id   TEXT NOT NULL REFERENCES reports(id),
	source      TEXT NOT NULL,
	captured_at DATETIME NOT NULL,
	url         TEXT NOT NULL,
	title       TEXT,
	body_text   TEXT,
	html        TEXT
);

CREATE INDEX IF NOT EXISTS idx_snapshots_report_id ON snapshots(report_id);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateReport(ctx context.Context, id, url string) (*model.Report, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, url, created_at) VALUES (?, ?, ?)`,
		id, url, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert report")
	}
	return &model.Report{ID: id, URL: url, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, created_at FROM reports WHERE id = ?`, id,
	)
	var r model.Report
	err := row.Scan(&r.ID, &r.URL, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: report %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get report")
	}
	return &r, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, reportID string, snap model.Snapshot) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (report_id, source, captured_at, url, title, body_text, html)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reportID, string(snap.Source), snap.When.UTC(), snap.URL, snap.Title, snap.Text, snap.HTML,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert snapshot for report %s", reportID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return id, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, reportID string) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, captured_at, url, title, body_text FROM snapshots
		 WHERE report_id = ? ORDER BY captured_at ASC`,
		reportID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var sn model.Snapshot
		var src string
		if err := rows.Scan(&sn.ID, &src, &sn.When, &sn.URL, &sn.Title, &sn.Text); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		sn.Source = model.Source(src)
		snaps = append(snaps, sn)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) GetSnapshotHTML(ctx context.Context, snapshotID int64) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, captured_at, url, title, html FROM snapshots WHERE id = ?`,
		snapshotID,
	)
	var sn model.Snapshot
	var src string
	err := row.Scan(&sn.ID, &src, &sn.When, &sn.URL, &sn.Title, &sn.HTML)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: snapshot %d", snapshotID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshot html")
	}
	sn.Source = model.Source(src)
	return &sn, nil
}

func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	// Snapshots first so no orphan rows survive a crash between the deletes.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE report_id IN (SELECT id FROM reports WHERE created_at < ?)`,
		cutoff,
	); err != nil {
		return 0, eris.Wrap(err, "sqlite: purge snapshots")
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reports WHERE created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge reports")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Compact(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return eris.Wrap(err, "sqlite: vacuum")
}
