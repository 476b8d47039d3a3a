// Package report orchestrates the diff pipeline: fetch the live page, query
// the archive index, select and fetch snapshots, persist what succeeded, and
// assemble the final change report.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mandela-labs/report-cli/internal/assemble"
	"github.com/mandela-labs/report-cli/internal/extract"
	"github.com/mandela-labs/report-cli/internal/fetch"
	"github.com/mandela-labs/report-cli/internal/model"
	"github.com/mandela-labs/report-cli/internal/resilience"
	"github.com/mandela-labs/report-cli/internal/selector"
	"github.com/mandela-labs/report-cli/internal/store"
	"github.com/mandela-labs/report-cli/internal/summary"
	"github.com/mandela-labs/report-cli/pkg/wayback"
)

// ErrInvalidDateRange rejects a request whose since bound is after until,
// before any fetch is attempted.
var ErrInvalidDateRange = eris.New("report: since must be <= until")

// ErrNoSnapshots is the terminal failure: live and archived fetches all came
// up empty, so there is nothing to compare.
var ErrNoSnapshots = assemble.ErrNoSnapshots

// LiveFetcher fetches a live page. *fetch.Fetcher implements it.
type LiveFetcher interface {
	Live(ctx context.Context, targetURL string) (*fetch.Result, error)
}

// Request describes one diff request.
type Request struct {
	URL       string
	Since     *time.Time
	Until     *time.Time // nil means now
	Snapshots int        // requested archived snapshot count
}

// SnapshotView is the outward-facing description of a captured snapshot.
type SnapshotView struct {
	ID        int64        `json:"id"`
	Source    model.Source `json:"source"`
	When      time.Time    `json:"when"`
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	ViewURL   string       `json:"view_url"`
	ReportURL string       `json:"report_url"`
}

// Payload is the complete report response.
type Payload struct {
	ReportID    string             `json:"report_id"`
	URL         string             `json:"url"`
	CreatedAt   time.Time          `json:"created_at"`
	Pairs       []string           `json:"pairs"`
	Diffs       []model.DiffResult `json:"diffs"`
	Summary     string             `json:"summary"`
	Snapshots   []SnapshotView     `json:"snapshots"`
	Notices     []string           `json:"notices"`
	ChangeRatio float64            `json:"change_ratio"`
}

// Config tunes the pipeline.
type Config struct {
	DefaultSnapshots     int
	MaxConcurrentFetches int
	QueryLimit           int
	DefaultProvider      string
	WebBaseURL           string
	Retry                resilience.RetryConfig
}

// Service runs the diff pipeline.
type Service struct {
	store   store.Store
	archive wayback.Client
	live    LiveFetcher
	llm     summary.Summarizer // nil when no LLM is configured
	cfg     Config
	log     *zap.Logger
}

// NewService wires the pipeline's collaborators.
func NewService(st store.Store, archive wayback.Client, live LiveFetcher, llm summary.Summarizer, cfg Config) *Service {
	if cfg.DefaultSnapshots <= 0 {
		cfg.DefaultSnapshots = 3
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 4
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = summary.ProviderAuto
	}
	if cfg.WebBaseURL == "" {
		cfg.WebBaseURL = "https://web.archive.org/web"
	}
	return &Service{
		store:   st,
		archive: archive,
		live:    live,
		llm:     llm,
		cfg:     cfg,
		log:     zap.L().With(zap.String("component", "report")),
	}
}

// Build runs the full pipeline for one diff request. Per-snapshot failures
// are isolated: a fetch that fails is logged and skipped, and the report is
// produced from whatever snapshots succeeded. Only the zero-snapshots outcome
// is fatal.
func (s *Service) Build(ctx context.Context, req Request) (*Payload, error) {
	until := time.Now().UTC()
	if req.Until != nil {
		until = *req.Until
	}
	if req.Since != nil && req.Since.After(until) {
		return nil, ErrInvalidDateRange
	}

	count := req.Snapshots
	if count <= 0 {
		count = s.cfg.DefaultSnapshots
	}

	rep, err := s.store.CreateReport(ctx, uuid.New().String(), req.URL)
	if err != nil {
		return nil, err
	}

	s.captureLive(ctx, rep.ID, req.URL)
	s.captureArchived(ctx, rep.ID, req.URL, req.Since, until, count)

	snaps, err := s.store.ListSnapshots(ctx, rep.ID)
	if err != nil {
		return nil, err
	}

	cs, err := assemble.Build(snaps, req.Since, &until)
	if err != nil {
		return nil, err
	}

	return s.payload(ctx, rep, snaps, cs, s.cfg.DefaultProvider), nil
}

// View recomputes diffs and summary from a persisted report. The summary
// provider can be overridden per view.
func (s *Service) View(ctx context.Context, reportID, styleOverride string) (*Payload, error) {
	rep, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, reportID)
	if err != nil {
		return nil, err
	}

	// Requested bounds are not persisted, so a re-render carries no notices.
	cs, err := assemble.Build(snaps, nil, nil)
	if err != nil {
		return nil, err
	}

	provider := s.cfg.DefaultProvider
	if styleOverride == summary.ProviderLLM || styleOverride == summary.ProviderRule {
		provider = styleOverride
	}
	return s.payload(ctx, rep, snaps, cs, provider), nil
}

// captureLive fetches and persists the live snapshot. All failures are
// non-fatal: a refusal or transport error just means no live side.
func (s *Service) captureLive(ctx context.Context, reportID, targetURL string) {
	res, err := s.live.Live(ctx, targetURL)
	if err != nil {
		s.log.Warn("live fetch failed",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return
	}
	if !res.Allowed {
		s.log.Info("live fetch refused by policy",
			zap.String("url", targetURL),
			zap.String("note", res.Note),
		)
		return
	}
	if res.HTML == "" {
		return
	}

	title, text := extract.TitleText(res.HTML)
	if _, err := s.store.SaveSnapshot(ctx, reportID, model.Snapshot{
		Source: model.SourceLive,
		When:   time.Now().UTC(),
		URL:    targetURL,
		Title:  title,
		Text:   text,
		HTML:   res.HTML,
	}); err != nil {
		s.log.Warn("save live snapshot failed", zap.Error(err))
	}
}

// captureArchived queries the CDX index, selects evenly spaced captures, and
// fetches them concurrently. An index failure yields an empty pool, which is
// not an error here.
func (s *Service) captureArchived(ctx context.Context, reportID, targetURL string, since *time.Time, until time.Time, count int) {
	q := wayback.Query{URL: targetURL, Until: until, Limit: s.cfg.QueryLimit}
	if since != nil {
		q.Since = *since
	}

	captures, err := resilience.DoVal(ctx, s.retryConfig("cdx_query"),
		func(ctx context.Context) ([]wayback.Capture, error) {
			return s.archive.Captures(ctx, q)
		})
	if err != nil {
		s.log.Warn("archive index query failed, proceeding without archived snapshots",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return
	}

	candidates := make([]model.Candidate, len(captures))
	for i, c := range captures {
		candidates[i] = model.Candidate{
			Timestamp:   c.Timestamp,
			OriginalURL: c.Original,
			ArchiveURL:  c.ArchiveURL,
		}
	}

	picks := selector.Select(candidates, count)
	s.log.Info("selected archive snapshots",
		zap.String("url", targetURL),
		zap.Int("pool", len(candidates)),
		zap.Int("picked", len(picks)),
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentFetches)
	for _, pick := range picks {
		g.Go(func() error {
			s.captureOne(gCtx, reportID, pick)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) captureOne(ctx context.Context, reportID string, pick model.Candidate) {
	html, err := resilience.DoVal(ctx, s.retryConfig("snapshot_fetch"),
		func(ctx context.Context) (string, error) {
			return s.archive.FetchSnapshot(ctx, pick.ArchiveURL)
		})
	if err != nil {
		s.log.Warn("archived snapshot fetch failed, skipping",
			zap.String("archive_url", pick.ArchiveURL),
			zap.Error(err),
		)
		return
	}

	title, text := extract.TitleText(html)
	if _, err := s.store.SaveSnapshot(ctx, reportID, model.Snapshot{
		Source: model.SourceArchive,
		When:   pick.Timestamp,
		URL:    pick.OriginalURL,
		Title:  title,
		Text:   text,
		HTML:   html,
	}); err != nil {
		s.log.Warn("save archived snapshot failed",
			zap.String("archive_url", pick.ArchiveURL),
			zap.Error(err),
		)
	}
}

func (s *Service) payload(ctx context.Context, rep *model.Report, snaps []model.Snapshot, cs *assemble.ChangeSet, provider string) *Payload {
	labels := make([]string, len(cs.Diffs))
	for i, d := range cs.Diffs {
		labels[i] = d.Label
	}

	views := make([]SnapshotView, len(snaps))
	for i, sn := range snaps {
		views[i] = SnapshotView{
			ID:        sn.ID,
			Source:    sn.Source,
			When:      sn.When,
			URL:       sn.URL,
			Title:     sn.Title,
			ViewURL:   s.viewURL(sn),
			ReportURL: fmt.Sprintf("/snapshot/%d", sn.ID),
		}
	}

	return &Payload{
		ReportID:    rep.ID,
		URL:         rep.URL,
		CreatedAt:   rep.CreatedAt,
		Pairs:       labels,
		Diffs:       cs.Diffs,
		Summary:     s.summarize(ctx, rep.URL, snaps, cs, provider),
		Snapshots:   views,
		Notices:     cs.Notices,
		ChangeRatio: cs.OverallRatio,
	}
}

// summarize is best-effort: the fallback chain ends at the rule summarizer,
// and even a total failure only costs the summary text.
func (s *Service) summarize(ctx context.Context, url string, snaps []model.Snapshot, cs *assemble.ChangeSet, provider string) string {
	if len(snaps) == 0 {
		return ""
	}

	fromText := snaps[0].Text
	toText := snaps[len(snaps)-1].Text
	if live, ok := liveSnapshot(snaps); ok {
		toText = live.Text
	}

	out, err := summary.ForProvider(provider, s.llm).Summarize(ctx, summary.Request{
		URL:      url,
		Pairs:    cs.Diffs,
		FromText: fromText,
		ToText:   toText,
	})
	if err != nil {
		s.log.Warn("summary generation failed", zap.Error(err))
		return ""
	}
	return out
}

// viewURL points at the original page for live snapshots and at the archived
// capture for wayback ones.
func (s *Service) viewURL(sn model.Snapshot) string {
	switch sn.Source {
	case model.SourceArchive:
		return fmt.Sprintf("%s/%s/%s", s.cfg.WebBaseURL, sn.When.UTC().Format("20060102150405"), sn.URL)
	case model.SourceLive:
		return sn.URL
	default:
		return ""
	}
}

func (s *Service) retryConfig(operation string) resilience.RetryConfig {
	cfg := s.cfg.Retry
	if cfg.MaxAttempts == 0 {
		cfg = resilience.DefaultRetryConfig()
	}
	cfg.OnRetry = resilience.RetryLogger("wayback", operation)
	return cfg
}

func liveSnapshot(snaps []model.Snapshot) (model.Snapshot, bool) {
	for _, sn := range snaps {
		if sn.Source == model.SourceLive {
			return sn, true
		}
	}
	return model.Snapshot{}, false
}
