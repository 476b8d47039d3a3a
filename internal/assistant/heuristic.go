package assistant

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	urlRe    = regexp.MustCompile(`(?i)https?://\S+`)
	domainRe = regexp.MustCompile(`(?i)\b(?:[a-z0-9-]+\.)+[a-z]{2,}\b`)
	dateRe   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	yearRe   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	spanRe   = regexp.MustCompile(`\b(?:past|last)\s+(\d{1,3})\s+(years?|months?|weeks?|days?)\b`)
	midRe    = regexp.MustCompile(`\bmid\s+(\d{4})\b`)
	qtrRe    = regexp.MustCompile(`\bend of q([1-4])\s+(\d{4})\b`)
	snapRe   = regexp.MustCompile(`(?i)(\d+)\s*(?:snapshots?|points?)`)
	nowRe    = regexp.MustCompile(`(?i)\b(now|today)\b`)
)

// Heuristic interprets messages with regex extraction only: URLs or bare
// domains, ISO dates, year ranges, relative phrases, snapshot counts, and
// summary style keywords.
type Heuristic struct {
	now func() time.Time
}

// NewHeuristic creates the regex-based interpreter.
func NewHeuristic() *Heuristic {
	return &Heuristic{now: time.Now}
}

func (h *Heuristic) Interpret(_ context.Context, message string, slots Slots) (Response, error) {
	// An empty message never advances the conversation, even with a URL
	// already slotted.
	if strings.TrimSpace(message) == "" {
		return Response{Reply: "Tell me the page URL to begin.", Slots: slots}, nil
	}

	merged := merge(slots, h.extract(message))
	merged.URL = normalizeURL(merged.URL)

	// "now"/"today" forces an open-ended until even if one was set before.
	untilIsNow := nowRe.MatchString(message)
	if untilIsNow {
		merged.Until = ""
	}
	if regexp.MustCompile(`(?i)\byesterday\b`).MatchString(message) {
		merged.Until = h.daysAgo(1)
	}
	if merged.Snapshots == 0 {
		merged.Snapshots = 5
	}
	if merged.Style == "" {
		merged.Style = "llm"
	}

	today := h.now().UTC().Format("2006-01-02")
	return Response{
		Reply: buildReply(merged, untilIsNow, today),
		Slots: merged,
		Ready: ready(merged),
	}, nil
}

// extract pulls slot updates out of one message. Explicit ISO dates win over
// year-only and relative phrases.
func (h *Heuristic) extract(message string) Slots {
	var s Slots
	lower := strings.ToLower(message)

	if m := urlRe.FindString(message); m != "" {
		s.URL = m
	} else if d := domainRe.FindString(message); d != "" {
		s.URL = "https://" + d
	}

	if dates := dateRe.FindAllString(message, 2); len(dates) > 0 {
		s.Since = dates[0]
		if len(dates) >= 2 {
			s.Until = dates[1]
		}
	} else {
		h.extractRelativeDates(lower, &s)
	}

	if strings.Contains(lower, "rule") {
		s.Style = "rule"
	}
	if strings.Contains(lower, "llm") {
		s.Style = "llm"
	}

	if m := snapRe.FindStringSubmatch(message); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && (n == 3 || n == 5 || n == 7) {
			s.Snapshots = n
		}
	}
	if s.Snapshots == 0 {
		switch {
		case strings.Contains(message, "7"):
			s.Snapshots = 7
		case strings.Contains(message, "5"):
			s.Snapshots = 5
		case strings.Contains(message, "3"):
			s.Snapshots = 3
		}
	}
	return s
}

func (h *Heuristic) extractRelativeDates(lower string, s *Slots) {
	// Year-only phrases like "from 1999 to now" or "2015 - 2018".
	if matches := yearRe.FindAllString(lower, -1); len(matches) > 0 {
		years := make([]int, 0, len(matches))
		for _, m := range matches {
			if y, err := strconv.Atoi(m); err == nil && y >= 1990 && y <= 2100 {
				years = append(years, y)
			}
		}
		sort.Ints(years)
		if len(years) > 0 {
			s.Since = fmt.Sprintf("%04d-01-01", years[0])
			if len(years) >= 2 && years[len(years)-1] >= years[0] {
				s.Until = fmt.Sprintf("%04d-12-31", years[len(years)-1])
			}
		}
	}

	today := h.now().UTC()
	switch {
	case regexp.MustCompile(`\b(since|from)\s+yesterday\b`).MatchString(lower):
		s.Since = h.daysAgo(1)
	case strings.Contains(lower, "until yesterday"), strings.Contains(lower, "yesterday"):
		s.Until = h.daysAgo(1)
	}

	if s.Since == "" {
		switch {
		case strings.Contains(lower, "last week"):
			s.Since = h.daysAgo(7)
		case strings.Contains(lower, "last month"):
			s.Since = h.daysAgo(30)
		case strings.Contains(lower, "last year"):
			s.Since = h.daysAgo(365)
		}
	}
	if s.Since == "" {
		if m := spanRe.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				s.Since = h.daysAgo(spanDays(n, m[2]))
			}
		}
	}

	// Calendar-year anchors override the rolling windows above.
	if strings.Contains(lower, "since last year") {
		s.Since = fmt.Sprintf("%04d-01-01", today.Year()-1)
	}
	if strings.Contains(lower, "until last year") {
		s.Until = fmt.Sprintf("%04d-12-31", today.Year()-1)
	}
	if strings.Contains(lower, "until last month") {
		firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		s.Until = firstOfMonth.AddDate(0, 0, -1).Format("2006-01-02")
	}

	// "mid 2016" means June 15 of that year; "end of q2 2023" means the last
	// day of that quarter. Both win over the bare-year fallback.
	if m := midRe.FindStringSubmatch(lower); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil && y >= 1990 && y <= 2100 {
			s.Since = fmt.Sprintf("%04d-06-15", y)
		}
	}
	if m := qtrRe.FindStringSubmatch(lower); m != nil {
		q, _ := strconv.Atoi(m[1])
		if y, err := strconv.Atoi(m[2]); err == nil && y >= 1990 && y <= 2100 {
			firstOfNext := time.Date(y, time.Month(q*3)+1, 1, 0, 0, 0, 0, time.UTC)
			s.Until = firstOfNext.AddDate(0, 0, -1).Format("2006-01-02")
		}
	}
}

func (h *Heuristic) daysAgo(n int) string {
	return h.now().UTC().AddDate(0, 0, -n).Format("2006-01-02")
}

func spanDays(n int, unit string) int {
	switch {
	case strings.HasPrefix(unit, "year"):
		return 365 * n
	case strings.HasPrefix(unit, "month"):
		return 30 * n
	case strings.HasPrefix(unit, "week"):
		return 7 * n
	default:
		return n
	}
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(u), "http://") && !strings.HasPrefix(strings.ToLower(u), "https://") {
		return "https://" + u
	}
	return u
}
