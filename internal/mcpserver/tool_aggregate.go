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
)

// handleAggregate implements the opensearch_aggregate tool: a
// caller-supplied aggregation DSL, returned unshaped apart from the
// overall byte cap.
func (s *Server) handleAggregate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowSearch() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	index, err := request.RequireString("index")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	args := request.GetArguments()
	aggs, ok := args["aggs"].(map[string]any)
	if !ok {
		return errorResponse("aggs must be an object"), nil
	}
	queryClause, _ := args["query"].(map[string]any)
	size := request.GetInt("size", 0)

	id, err := s.activeIdentity()
	if err != nil {
		return failureResponse(err), nil
	}

	raw, err := s.executor.Search(ctx, id, index, query.Aggregation(aggs, queryClause, size))
	if err != nil {
		return failureResponse(err), nil
	}
	return s.finalize(raw, nil), nil
}

// handleClusterHealth implements the opensearch_cluster_health tool.
// The search proxy offers no health API, so this probes with a
// zero-size count over the last minute and reports what came back.
func (s *Server) handleClusterHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	now := time.Now().UTC()
	from := now.Add(-time.Minute).Format(query.TimestampFormat)
	to := now.Format(query.TimestampFormat)

	id, err := s.activeIdentity()
	if err != nil {
		return failureResponse(err), nil
	}

	raw, err := s.executor.Search(ctx, id, "*", query.RecentActivity(from, to))
	if err != nil {
		return failureResponse(err), nil
	}

	response := map[string]any{
		"docs_in_last_minute": docCount(raw),
		"shards":              raw["_shards"],
		"took_ms":             raw["took"],
		"timed_out":           raw["timed_out"],
	}
	return s.finalize(response, nil), nil
}

// docCount extracts hits.total.value, tolerating both response forms.
func docCount(raw map[string]any) any {
	hits, _ := raw["hits"].(map[string]any)
	if hits == nil {
		return "unknown"
	}
	switch total := hits["total"].(type) {
	case float64:
		return int(total)
	case map[string]any:
		if value, ok := total["value"].(float64); ok {
			return int(value)
		}
	}
	return "unknown"
}
