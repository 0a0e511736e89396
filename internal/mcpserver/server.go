// Package mcpserver exposes the leak store to dashboard and API consumers as
// read-only Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/decimal-labs/leakwatch/internal/common"
	"github.com/decimal-labs/leakwatch/internal/model"
	"github.com/decimal-labs/leakwatch/internal/service"
	"github.com/decimal-labs/leakwatch/internal/storage"
)

// Tool names.
const (
	ToolSearchLeaks = "search_leaks"
	ToolGetLeak     = "get_leak"
	ToolLeakStats   = "leak_stats"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Server serves read-only leak tools over MCP.
type Server struct {
	store  service.LeakReader
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New registers the leak tools on a fresh MCP server.
func New(store service.LeakReader, version string, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		mcp:    server.NewMCPServer("leakwatch", version, server.WithToolCapabilities(false)),
		logger: common.OrDefault(logger),
	}

	s.mcp.AddTool(mcp.NewTool(ToolSearchLeaks,
		mcp.WithDescription("Search leak records, most recently seen first. Identifier values are masked unless unmasked is true."),
		mcp.WithString("category", mcp.Description("Only records with a finding of this category (e.g. aadhaar, pan, email)")),
		mcp.WithString("min_severity", mcp.Description("Lowest severity to include: low, medium, high or critical")),
		mcp.WithString("max_severity", mcp.Description("Highest severity to include")),
		mcp.WithString("status", mcp.Description("Review status: new, reviewed or archived")),
		mcp.WithString("source", mcp.Description("Case-insensitive substring of a source identifier")),
		mcp.WithString("identifier", mcp.Description("Case-insensitive substring of an identifier value")),
		mcp.WithString("since", mcp.Description("RFC 3339 lower bound on last seen")),
		mcp.WithString("until", mcp.Description("RFC 3339 upper bound on last seen")),
		mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum records to return (default %d, max %d)", defaultLimit, maxLimit))),
		mcp.WithBoolean("unmasked", mcp.Description("Return identifier values in full")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(ToolGetLeak,
		mcp.WithDescription("Fetch one leak record by fingerprint, with its sighting history."),
		mcp.WithString("fingerprint", mcp.Required(), mcp.Description("Record fingerprint")),
		mcp.WithBoolean("unmasked", mcp.Description("Return identifier values in full")),
	), s.handleGet)

	s.mcp.AddTool(mcp.NewTool(ToolLeakStats,
		mcp.WithDescription("Aggregate counts by severity, category, status and processing outcome."),
	), s.handleStats)

	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves requests on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP tools on stdio")
	return server.ServeStdio(s.mcp)
}

// SearchResult is the payload of search_leaks.
type SearchResult struct {
	NextCursor string              `json:"next_cursor,omitempty"`
	Records    []*model.LeakRecord `json:"records"`
}

// LeakDetail is the payload of get_leak.
type LeakDetail struct {
	Record  *model.LeakRecord   `json:"record"`
	History []model.SightingLog `json:"history"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments
	query, err := parseQuery(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// One extra record tells us whether another page exists.
	limit := query.Limit
	query.Limit = limit + 1

	result := SearchResult{Records: []*model.LeakRecord{}}
	for rec, err := range s.store.Search(ctx, query) {
		if err != nil {
			if errors.Is(err, common.ErrInvalidInput) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, fmt.Errorf("search failed: %w", err)
		}
		if len(result.Records) == limit {
			result.NextCursor = storage.EncodeCursor(result.Records[limit-1])
			break
		}
		result.Records = append(result.Records, rec)
	}

	if !boolArg(args, "unmasked") {
		for i, rec := range result.Records {
			result.Records[i] = rec.Masked()
		}
	}
	s.logger.Debug("MCP search", "results", len(result.Records), "more", result.NextCursor != "")
	return jsonResult(result)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments
	fp, _ := args["fingerprint"].(string)
	if fp == "" {
		return mcp.NewToolResultError("fingerprint is required"), nil
	}

	rec, err := s.store.Lookup(ctx, model.Fingerprint(fp))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidInput) {
			return mcp.NewToolResultError(fmt.Sprintf("no leak record with fingerprint %q", fp)), nil
		}
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	history, err := s.store.History(ctx, rec.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("history failed: %w", err)
	}
	if !boolArg(args, "unmasked") {
		rec = rec.Masked()
	}
	if history == nil {
		history = []model.SightingLog{}
	}
	return jsonResult(LeakDetail{Record: rec, History: history})
}

func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}
	return jsonResult(stats)
}

func parseQuery(args map[string]any) (model.SearchQuery, error) {
	q := model.SearchQuery{
		Source:     stringArg(args, "source"),
		Identifier: stringArg(args, "identifier"),
		Cursor:     stringArg(args, "cursor"),
		Limit:      defaultLimit,
	}
	if v := stringArg(args, "category"); v != "" {
		c, err := model.ParseCategory(v)
		if err != nil {
			return q, err
		}
		q.Category = c
	}
	for key, dst := range map[string]*model.Severity{"min_severity": &q.MinSeverity, "max_severity": &q.MaxSeverity} {
		if v := stringArg(args, key); v != "" {
			sev, err := model.ParseSeverity(v)
			if err != nil {
				return q, err
			}
			*dst = sev
		}
	}
	if v := stringArg(args, "status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return q, err
		}
		q.Status = st
	}
	for key, dst := range map[string]**time.Time{"since": &q.Since, "until": &q.Until} {
		if v := stringArg(args, key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return q, fmt.Errorf("%s must be an RFC 3339 timestamp: %w", key, err)
			}
			*dst = &t
		}
	}
	if n, ok := args["limit"].(float64); ok && n > 0 {
		q.Limit = min(int(n), maxLimit)
	}
	return q, nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
