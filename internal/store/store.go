// Package store persists reports and their snapshots. Writes are append-only
// per snapshot; the only deletions happen through the retention purge.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mandela-labs/report-cli/internal/model"
)

// ErrNotFound is returned when a report or snapshot does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for reports and snapshots.
type Store interface {
	CreateReport(ctx context.Context, id, url string) (*model.Report, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)

	// SaveSnapshot appends a snapshot to a report and returns its row ID.
	SaveSnapshot(ctx context.Context, reportID string, snap model.Snapshot) (int64, error)
	// ListSnapshots returns a report's snapshots ordered by capture time,
	// without the stored HTML.
	ListSnapshots(ctx context.Context, reportID string) ([]model.Snapshot, error)
	// GetSnapshotHTML returns one snapshot including its stored HTML.
	GetSnapshotHTML(ctx context.Context, snapshotID int64) (*model.Snapshot, error)

	// PurgeOlderThan deletes reports (and their snapshots) created more than
	// the given number of days ago, returning how many reports went away.
	PurgeOlderThan(ctx context.Context, days int) (int, error)
	// Compact reclaims space after large deletions.
	Compact(ctx context.Context) error

	Migrate(ctx context.Context) error
	Close() error
}
