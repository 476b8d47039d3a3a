// Package assemble decides which snapshot pairs get diffed, derives coverage
// gap notices, and aggregates an overall change ratio for a report.
package assemble

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/mandela-labs/report-cli/internal/model"
	"github.com/mandela-labs/report-cli/internal/textdiff"
)

// Pair labels shown on the report page. Historical always precedes recent.
const (
	LabelHistorical = "Historical change (first vs last Wayback)"
	LabelRecent     = "Recent change (last Wayback vs Live)"
)

// gapNoticeDays is the coverage shortfall, in days, beyond which a notice is
// emitted for a requested date bound.
const gapNoticeDays = 90

// ErrNoSnapshots signals that a report has nothing to compare. Unlike
// per-snapshot fetch failures this is fatal to the request.
var ErrNoSnapshots = eris.New("assemble: no snapshots available")

// ChangeSet is the assembled comparison for one report.
type ChangeSet struct {
	Pairs        []model.Pair
	Diffs        []model.DiffResult
	Notices      []string
	OverallRatio float64
}

// Build sorts the snapshots by capture time, selects pairs, diffs each pair,
// and computes gap notices against the requested date bounds. Returns
// ErrNoSnapshots when there is nothing to compare.
func Build(snaps []model.Snapshot, since, until *time.Time) (*ChangeSet, error) {
	if len(snaps) == 0 {
		return nil, ErrNoSnapshots
	}

	sorted := make([]model.Snapshot, len(snaps))
	copy(sorted, snaps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].When.Before(sorted[j].When)
	})

	pairs := Pairs(sorted)
	diffs := make([]model.DiffResult, 0, len(pairs))
	for _, p := range pairs {
		markup, stats := textdiff.Diff(p.From.Text, p.To.Text)
		diffs = append(diffs, model.DiffResult{
			Label:    p.Label,
			FromWhen: p.From.When,
			ToWhen:   p.To.When,
			Markup:   markup,
			Stats:    stats,
		})
	}

	cs := &ChangeSet{
		Pairs:   pairs,
		Diffs:   diffs,
		Notices: GapNotices(sorted, since, until),
	}
	if len(diffs) > 0 {
		cs.OverallRatio = diffs[0].Stats.Ratio
	}
	return cs, nil
}

// Pairs selects which snapshots to compare. Two independent rules apply:
// with two or more snapshots, the earliest and latest form the historical
// pair; when both an archived and a live snapshot exist, the latest archived
// and the live one form the recent pair. With exactly one archived and one
// live snapshot both rules fire on the same two snapshots, which is intended:
// the two labels answer different questions. Snapshots must be sorted by
// capture time ascending.
func Pairs(sorted []model.Snapshot) []model.Pair {
	var pairs []model.Pair
	if len(sorted) >= 2 {
		pairs = append(pairs, model.Pair{
			Label: LabelHistorical,
			From:  sorted[0],
			To:    sorted[len(sorted)-1],
		})
	}

	live, okLive := firstBySource(sorted, model.SourceLive)
	lastWB, okWB := lastBySource(sorted, model.SourceArchive)
	if okLive && okWB {
		pairs = append(pairs, model.Pair{
			Label: LabelRecent,
			From:  lastWB,
			To:    live,
		})
	}
	return pairs
}

// GapNotices reports when archive coverage falls short of the requested date
// range by more than the threshold on either side. Notices are best-effort:
// snapshots without a usable capture time are skipped, never fatal.
func GapNotices(sorted []model.Snapshot, since, until *time.Time) []string {
	var notices []string

	if earliest, ok := firstBySource(sorted, model.SourceArchive); ok && since != nil && !earliest.When.IsZero() {
		if days := daysBetween(*since, earliest.When); days > gapNoticeDays {
			notices = append(notices, fmt.Sprintf(
				"Earliest Wayback archive is %s (%d days after requested start %s).",
				earliest.When.Format("2006-01-02"), days, since.Format("2006-01-02")))
		}
	}
	if latest, ok := lastBySource(sorted, model.SourceArchive); ok && until != nil && !latest.When.IsZero() {
		if days := daysBetween(latest.When, *until); days > gapNoticeDays {
			notices = append(notices, fmt.Sprintf(
				"Latest Wayback archive is %s (%d days before requested end %s).",
				latest.When.Format("2006-01-02"), days, until.Format("2006-01-02")))
		}
	}
	return notices
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func firstBySource(snaps []model.Snapshot, src model.Source) (model.Snapshot, bool) {
	for _, s := range snaps {
		if s.Source == src {
			return s, true
		}
	}
	return model.Snapshot{}, false
}

func lastBySource(snaps []model.Snapshot, src model.Source) (model.Snapshot, bool) {
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Source == src {
			return snaps[i], true
		}
	}
	return model.Snapshot{}, false
}
