// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/spyglass/internal/query"
	"github.com/tombee/spyglass/internal/shape"
)

// maxSearchSize caps how many hits one call may request.
const maxSearchSize = 1000

// handleSearch implements the opensearch_search tool: a discover-style
// search followed by the full shaping pipeline.
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowSearch() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	index, err := request.RequireString("index")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	size := request.GetInt("size", 100)
	if size > maxSearchSize {
		size = maxSearchSize
	}
	if size < 0 {
		size = 0
	}

	cfg := shape.Config{
		SummaryOnly:    request.GetBool("summary_only", false),
		AutoPrune:      request.GetBool("auto_prune", true),
		Fields:         stringSlice(request.GetArguments()["fields"]),
		MaxCharsPerHit: request.GetInt("max_chars_per_hit", shape.DefaultMaxCharsPerHit),
		MaxBytes:       s.maxBytes,
	}

	defaultFrom, defaultTo := query.Window(time.Now())
	window := shape.TimeRange{
		From: request.GetString("time_from", defaultFrom),
		To:   request.GetString("time_to", defaultTo),
	}

	// Summary mode only needs the count.
	querySize := size
	if cfg.SummaryOnly {
		querySize = 0
	}

	body := query.Dashboard{
		QueryString: request.GetString("query_string", ""),
		TimeFrom:    window.From,
		TimeTo:      window.To,
		Size:        querySize,
	}.Build()

	id, err := s.activeIdentity()
	if err != nil {
		return failureResponse(err), nil
	}

	raw, err := s.executor.Search(ctx, id, index, body)
	if err != nil {
		return failureResponse(err), nil
	}

	shaped, tags := shape.Search(raw, window, size, cfg)
	return s.finalize(shaped, tags), nil
}

// handleSearchRaw implements the opensearch_search_raw tool: a
// caller-supplied Query DSL body, returned unshaped apart from the
// overall byte cap.
func (s *Server) handleSearchRaw(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowSearch() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	index, err := request.RequireString("index")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	body, ok := request.GetArguments()["body"].(map[string]any)
	if !ok {
		return errorResponse("body must be an object"), nil
	}

	id, err := s.activeIdentity()
	if err != nil {
		return failureResponse(err), nil
	}

	raw, err := s.executor.Search(ctx, id, index, body)
	if err != nil {
		return failureResponse(err), nil
	}
	return s.finalize(raw, nil), nil
}

// stringSlice coerces a JSON array argument into a string slice.
func stringSlice(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
