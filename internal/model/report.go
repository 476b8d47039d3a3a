package model

import "time"

// Source identifies where a snapshot's HTML came from.
type Source string

const (
	SourceLive    Source = "live"
	SourceArchive Source = "wayback"
)

// Candidate is a raw archive-index entry: a capture that exists upstream but
// has not been fetched yet. Candidates arrive sorted by timestamp ascending,
// digest-deduplicated by the CDX API.
type Candidate struct {
	Timestamp   time.Time `json:"timestamp"`
	OriginalURL string    `json:"original_url"`
	ArchiveURL  string    `json:"archive_url"`
}

// Snapshot is a fetched and text-extracted page version. HTML is the durable
// source of truth; Title and Text are derived from it at capture time. Text is
// capped by the extractor so diff cost stays bounded.
type Snapshot struct {
	ID     int64     `json:"id"`
	Source Source    `json:"source"`
	When   time.Time `json:"when"`
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	Text   string    `json:"text"`
	HTML   string    `json:"html,omitempty"`
}

// Report is the aggregate root: one diff request, the snapshots it captured,
// and any coverage notices. Snapshots accumulate as fetches succeed; the
// report itself is never mutated after creation except by the retention sweep.
type Report struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"created_at"`
	Snapshots []Snapshot `json:"snapshots,omitempty"`
	Notices   []string   `json:"notices,omitempty"`
}

// DiffStats summarizes how much changed between two texts.
type DiffStats struct {
	TotalTokens   int     `json:"total_tokens"`
	ChangedTokens int     `json:"changed_tokens"`
	Ratio         float64 `json:"ratio"`
}

// DiffResult is one rendered comparison between two snapshots. It is derived
// on demand when a report is built or viewed and never persisted, so the
// summary provider and markup style can change per view.
type DiffResult struct {
	Label    string    `json:"label"`
	FromWhen time.Time `json:"from_when"`
	ToWhen   time.Time `json:"to_when"`
	Markup   string    `json:"html"`
	Stats    DiffStats `json:"stats"`
}

// Pair names two snapshots to diff, oldest side first.
type Pair struct {
	Label string
	From  Snapshot
	To    Snapshot
}
