package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decimal-labs/leakwatch/internal/fingerprint"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/testutil"
	"github.com/decimal-labs/leakwatch/internal/testutil/leaks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer seeds a store with n records, one minute apart, newest last.
func newTestServer(t *testing.T, n int) (*Server, []model.Fingerprint) {
	t.Helper()
	db := testutil.SetupTestDBWithBuilder(t, func(b leaks.Builder) leaks.Builder {
		return b.WithRecords(n)
	})
	return New(db.Storage, "test", testLogger()), db.Fingerprints()
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleSearch(t *testing.T) {
	s, fps := newTestServer(t, 5)
	ctx := context.Background()

	tests := []struct {
		args      map[string]any
		name      string
		wantFirst model.Fingerprint
		wantCount int
	}{
		{name: "all", args: map[string]any{}, wantCount: 5, wantFirst: fps[4]},
		{name: "category", args: map[string]any{"category": "aadhaar"}, wantCount: 3, wantFirst: fps[4]},
		{name: "min severity", args: map[string]any{"min_severity": "high"}, wantCount: 3, wantFirst: fps[4]},
		{name: "max severity", args: map[string]any{"max_severity": "medium"}, wantCount: 2, wantFirst: fps[3]},
		{name: "source", args: map[string]any{"source": "PASTE.example/1"}, wantCount: 1, wantFirst: fps[1]},
		{name: "since", args: map[string]any{"since": "2024-06-01T00:03:00Z"}, wantCount: 2, wantFirst: fps[4]},
		{name: "status", args: map[string]any{"status": "archived"}, wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleSearch(ctx, call(tt.args))
			require.NoError(t, err)
			require.False(t, res.IsError, resultText(t, res))

			var out SearchResult
			require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
			assert.Len(t, out.Records, tt.wantCount)
			assert.Empty(t, out.NextCursor)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantFirst, out.Records[0].Fingerprint)
			}
		})
	}
}

func TestHandleSearch_MasksByDefault(t *testing.T) {
	s, _ := newTestServer(t, 1)
	ctx := context.Background()

	res, err := s.handleSearch(ctx, call(map[string]any{}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.NotContains(t, text, leaks.AadhaarValue)
	assert.Contains(t, text, "********2346")

	res, err = s.handleSearch(ctx, call(map[string]any{"unmasked": true}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), leaks.AadhaarValue)
}

func TestHandleSearch_Paging(t *testing.T) {
	s, fps := newTestServer(t, 5)
	ctx := context.Background()

	var seen []model.Fingerprint
	cursor := ""
	for page := 0; page < 5; page++ {
		args := map[string]any{"limit": float64(2)}
		if cursor != "" {
			args["cursor"] = cursor
		}
		res, err := s.handleSearch(ctx, call(args))
		require.NoError(t, err)
		var out SearchResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
		for _, r := range out.Records {
			seen = append(seen, r.Fingerprint)
		}
		cursor = out.NextCursor
		if cursor == "" {
			break
		}
	}
	assert.Equal(t, []model.Fingerprint{fps[4], fps[3], fps[2], fps[1], fps[0]}, seen)
}

func TestHandleSearch_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t, 1)
	for name, args := range map[string]map[string]any{
		"category": {"category": "shoe-size"},
		"severity": {"min_severity": "apocalyptic"},
		"status":   {"status": "lost"},
		"since":    {"since": "yesterday"},
		"cursor":   {"cursor": "!!!"},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := s.handleSearch(context.Background(), call(args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestHandleGet(t *testing.T) {
	s, fps := newTestServer(t, 2)
	ctx := context.Background()

	res, err := s.handleGet(ctx, call(map[string]any{"fingerprint": string(fps[0])}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var detail LeakDetail
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &detail))
	assert.Equal(t, fps[0], detail.Record.Fingerprint)
	require.Len(t, detail.History, 1)
	assert.Equal(t, testutil.RunID, detail.History[0].RunID)
	assert.Equal(t, model.OutcomePersisted, detail.History[0].Outcome)

	t.Run("missing", func(t *testing.T) {
		res, err := s.handleGet(ctx, call(map[string]any{"fingerprint": string(fingerprint.Compute("never seen"))}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("malformed", func(t *testing.T) {
		res, err := s.handleGet(ctx, call(map[string]any{"fingerprint": "xyz"}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("empty", func(t *testing.T) {
		res, err := s.handleGet(ctx, call(map[string]any{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})
}

func TestHandleStats(t *testing.T) {
	s, _ := newTestServer(t, 3)

	res, err := s.handleStats(context.Background(), call(nil))
	require.NoError(t, err)

	var stats model.Stats
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.BySeverity[model.SeverityHigh])
	assert.Equal(t, 3, stats.ByCategory[model.CategoryEmail])
	assert.Equal(t, 3, stats.ByOutcome[model.OutcomePersisted])
}
