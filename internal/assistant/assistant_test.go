package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubInterpreter struct {
	resp Response
	err  error
}

func (s *stubInterpreter) Interpret(_ context.Context, _ string, _ Slots) (Response, error) {
	return s.resp, s.err
}

func TestWithFallback_PrimarySucceeds(t *testing.T) {
	t.Parallel()
	primary := &stubInterpreter{resp: Response{Reply: "primary"}}
	secondary := &stubInterpreter{resp: Response{Reply: "secondary"}}

	resp, err := WithFallback(primary, secondary).Interpret(context.Background(), "msg", Slots{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Reply)
}

func TestWithFallback_PrimaryFails(t *testing.T) {
	t.Parallel()
	primary := &stubInterpreter{err: assert.AnError}
	secondary := &stubInterpreter{resp: Response{Reply: "secondary"}}

	resp, err := WithFallback(primary, secondary).Interpret(context.Background(), "msg", Slots{})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Reply)
}

func TestMerge(t *testing.T) {
	t.Parallel()
	existing := Slots{URL: "https://a.example/", Since: "2020-01-01", Snapshots: 3, Style: "rule"}
	updates := Slots{Until: "2023-12-31", Snapshots: 7}

	out := merge(existing, updates)

	assert.Equal(t, "https://a.example/", out.URL)
	assert.Equal(t, "2020-01-01", out.Since)
	assert.Equal(t, "2023-12-31", out.Until)
	assert.Equal(t, 7, out.Snapshots)
	assert.Equal(t, "rule", out.Style)
}

func TestMerge_EmptyUpdatesKeepEverything(t *testing.T) {
	t.Parallel()
	existing := Slots{URL: "https://a.example/", Since: "2020-01-01", Until: "2021-01-01", Snapshots: 5, Style: "llm"}

	assert.Equal(t, existing, merge(existing, Slots{}))
}

func TestReady(t *testing.T) {
	t.Parallel()
	assert.False(t, ready(Slots{}))
	assert.False(t, ready(Slots{Since: "2020-01-01"}))
	assert.True(t, ready(Slots{URL: "https://example.com/"}))
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"example.com", "https://example.com"},
		{"  example.com  ", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"https://example.com/page", "https://example.com/page"},
		{"HTTPS://EXAMPLE.COM", "HTTPS://EXAMPLE.COM"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeURL(tt.in), "input %q", tt.in)
	}
}
