package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mandela-labs/report-cli/internal/assemble"
	"github.com/mandela-labs/report-cli/internal/fetch"
	"github.com/mandela-labs/report-cli/internal/model"
	"github.com/mandela-labs/report-cli/internal/resilience"
	"github.com/mandela-labs/report-cli/internal/store"
	"github.com/mandela-labs/report-cli/pkg/wayback"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu      sync.Mutex
	reports map[string]*model.Report
	snaps   map[string][]model.Snapshot
	nextID  int64
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{
		reports: map[string]*model.Report{},
		snaps:   map[string][]model.Snapshot{},
	}
}

func (m *memStore) CreateReport(_ context.Context, id, url string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep := &model.Report{ID: id, URL: url, CreatedAt: time.Now().UTC()}
	m.reports[id] = rep
	return rep, nil
}

func (m *memStore) GetReport(_ context.Context, id string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rep, nil
}

func (m *memStore) SaveSnapshot(_ context.Context, reportID string, snap model.Snapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.nextID++
	snap.ID = m.nextID
	m.snaps[reportID] = append(m.snaps[reportID], snap)
	return snap.ID, nil
}

func (m *memStore) ListSnapshots(_ context.Context, reportID string) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Snapshot, len(m.snaps[reportID]))
	copy(out, m.snaps[reportID])
	return out, nil
}

func (m *memStore) GetSnapshotHTML(_ context.Context, snapshotID int64) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snaps := range m.snaps {
		for _, sn := range snaps {
			if sn.ID == snapshotID {
				return &sn, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) PurgeOlderThan(context.Context, int) (int, error) { return 0, nil }
func (m *memStore) Compact(context.Context) error                    { return nil }
func (m *memStore) Migrate(context.Context) error                    { return nil }
func (m *memStore) Close() error                                     { return nil }

// fakeArchive serves canned captures and snapshot HTML.
type fakeArchive struct {
	captures    []wayback.Capture
	capturesErr error
	pages       map[string]string
	fetchErr    error
}

func (f *fakeArchive) Captures(context.Context, wayback.Query) ([]wayback.Capture, error) {
	return f.captures, f.capturesErr
}

func (f *fakeArchive) FetchSnapshot(_ context.Context, archiveURL string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return f.pages[archiveURL], nil
}

type fakeLive struct {
	result *fetch.Result
	err    error
}

func (f *fakeLive) Live(context.Context, string) (*fetch.Result, error) {
	return f.result, f.err
}

func capture(ts time.Time) wayback.Capture {
	return wayback.Capture{
		Timestamp:  ts,
		Original:   "https://example.com/",
		ArchiveURL: "https://archive.test/" + ts.Format("20060102150405"),
	}
}

func testConfig() Config {
	return Config{
		DefaultSnapshots:     3,
		MaxConcurrentFetches: 2,
		Retry:                resilience.RetryConfig{MaxAttempts: 1},
	}
}

func TestBuild_FullPipeline(t *testing.T) {
	t.Parallel()
	t1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	archive := &fakeArchive{
		captures: []wayback.Capture{capture(t1), capture(t2)},
		pages: map[string]string{
			"https://archive.test/20190101000000": "<html><title>Old</title><body>original wording here</body></html>",
			"https://archive.test/20220601000000": "<html><title>Mid</title><body>revised wording here</body></html>",
		},
	}
	live := &fakeLive{result: &fetch.Result{
		Allowed: true,
		HTML:    "<html><title>Now</title><body>current wording here</body></html>",
		Status:  200,
	}}
	st := newMemStore()
	svc := NewService(st, archive, live, nil, testConfig())

	payload, err := svc.Build(context.Background(), Request{URL: "https://example.com/", Snapshots: 2})
	require.NoError(t, err)

	require.Len(t, payload.Snapshots, 3)
	require.Len(t, payload.Diffs, 2)
	assert.Equal(t, assemble.LabelHistorical, payload.Diffs[0].Label)
	assert.Equal(t, assemble.LabelRecent, payload.Diffs[1].Label)
	assert.Equal(t, []string{assemble.LabelHistorical, assemble.LabelRecent}, payload.Pairs)
	assert.Equal(t, payload.Diffs[0].Stats.Ratio, payload.ChangeRatio)
	assert.Contains(t, payload.Summary, "Mandela Report (rule-based):")
	assert.NotEmpty(t, payload.ReportID)

	// Snapshot views carry archive.org links for archived captures and the
	// original URL for the live one.
	var liveViews, archViews int
	for _, v := range payload.Snapshots {
		switch v.Source {
		case model.SourceLive:
			liveViews++
			assert.Equal(t, "https://example.com/", v.ViewURL)
		case model.SourceArchive:
			archViews++
			assert.Contains(t, v.ViewURL, "web.archive.org/web/")
		}
	}
	assert.Equal(t, 1, liveViews)
	assert.Equal(t, 2, archViews)
}

func TestBuild_InvalidDateRange(t *testing.T) {
	t.Parallel()
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewService(newMemStore(), &fakeArchive{}, &fakeLive{err: assert.AnError}, nil, testConfig())

	_, err := svc.Build(context.Background(), Request{
		URL:   "https://example.com/",
		Since: &since,
		Until: &until,
	})

	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestBuild_NothingCaptured(t *testing.T) {
	t.Parallel()
	svc := NewService(newMemStore(), &fakeArchive{}, &fakeLive{err: assert.AnError}, nil, testConfig())

	_, err := svc.Build(context.Background(), Request{URL: "https://example.com/"})

	assert.ErrorIs(t, err, ErrNoSnapshots)
}

func TestBuild_IndexFailureStillYieldsLiveOnlyReport(t *testing.T) {
	t.Parallel()
	archive := &fakeArchive{capturesErr: assert.AnError}
	live := &fakeLive{result: &fetch.Result{
		Allowed: true,
		HTML:    "<html><body>live only</body></html>",
		Status:  200,
	}}
	svc := NewService(newMemStore(), archive, live, nil, testConfig())

	payload, err := svc.Build(context.Background(), Request{URL: "https://example.com/"})
	require.NoError(t, err)

	assert.Len(t, payload.Snapshots, 1)
	assert.Empty(t, payload.Diffs)
}

func TestBuild_RobotsRefusalSkipsLive(t *testing.T) {
	t.Parallel()
	t1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	archive := &fakeArchive{
		captures: []wayback.Capture{capture(t1), capture(t2)},
		pages: map[string]string{
			"https://archive.test/20190101000000": "<html><body>a</body></html>",
			"https://archive.test/20220101000000": "<html><body>b</body></html>",
		},
	}
	live := &fakeLive{result: &fetch.Result{Allowed: false, Note: "robots disallow"}}
	svc := NewService(newMemStore(), archive, live, nil, testConfig())

	payload, err := svc.Build(context.Background(), Request{URL: "https://example.com/", Snapshots: 2})
	require.NoError(t, err)

	require.Len(t, payload.Snapshots, 2)
	require.Len(t, payload.Diffs, 1)
	assert.Equal(t, assemble.LabelHistorical, payload.Diffs[0].Label)
}

func TestBuild_SnapshotFetchFailureIsSkipped(t *testing.T) {
	t.Parallel()
	t1 := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	archive := &fakeArchive{
		captures: []wayback.Capture{capture(t1)},
		fetchErr: assert.AnError,
	}
	live := &fakeLive{result: &fetch.Result{
		Allowed: true,
		HTML:    "<html><body>live</body></html>",
		Status:  200,
	}}
	svc := NewService(newMemStore(), archive, live, nil, testConfig())

	payload, err := svc.Build(context.Background(), Request{URL: "https://example.com/"})
	require.NoError(t, err)

	assert.Len(t, payload.Snapshots, 1)
	assert.Equal(t, model.SourceLive, payload.Snapshots[0].Source)
}

func TestView_StyleOverride(t *testing.T) {
	t.Parallel()
	st := newMemStore()
	_, err := st.CreateReport(context.Background(), "rep-1", "https://example.com/")
	require.NoError(t, err)
	for _, sn := range []model.Snapshot{
		{Source: model.SourceArchive, When: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), URL: "https://example.com/", Text: "old words"},
		{Source: model.SourceLive, When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), URL: "https://example.com/", Text: "new words"},
	} {
		_, err := st.SaveSnapshot(context.Background(), "rep-1", sn)
		require.NoError(t, err)
	}

	svc := NewService(st, &fakeArchive{}, &fakeLive{}, nil, testConfig())

	payload, err := svc.View(context.Background(), "rep-1", "rule")
	require.NoError(t, err)

	assert.Equal(t, "rep-1", payload.ReportID)
	require.Len(t, payload.Diffs, 2)
	assert.Contains(t, payload.Summary, "Mandela Report (rule-based):")
	assert.Empty(t, payload.Notices)
}

func TestView_ReportNotFound(t *testing.T) {
	t.Parallel()
	svc := NewService(newMemStore(), &fakeArchive{}, &fakeLive{}, nil, testConfig())

	_, err := svc.View(context.Background(), "missing", "")

	assert.ErrorIs(t, err, store.ErrNotFound)
}
