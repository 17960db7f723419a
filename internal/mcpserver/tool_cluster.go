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
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleSwitchCluster implements the opensearch_switch_cluster tool:
// validate the target, obtain fresh credentials for it, and move the
// active pointer. The switch only commits once credentials are in hand,
// so a failed switch leaves the previous cluster active.
func (s *Server) handleSwitchCluster(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	name, err := request.RequireString("cluster")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	id, err := s.directory.Lookup(name)
	if err != nil {
		return s.finalize(map[string]any{
			"error":              fmt.Sprintf("Unknown cluster: %q", name),
			"available_clusters": s.directory.QueryableNames(),
		}, nil), nil
	}
	if !id.Queryable() {
		return s.finalize(map[string]any{
			"error":       fmt.Sprintf("%q does not have a search endpoint", name),
			"description": id.Description,
		}, nil), nil
	}

	s.logger.Info("switching cluster", slog.String("cluster", id.Name))

	if _, err := s.refresher.Refresh(ctx, id); err != nil {
		return failureResponse(err), nil
	}
	if err := s.store.SetActive(ctx, id.Name); err != nil {
		return failureResponse(err), nil
	}

	return s.finalize(map[string]any{
		"success":     true,
		"cluster":     id.Name,
		"description": id.Description,
		"url":         id.URL,
		"message":     fmt.Sprintf("Switched to %s (%s). All subsequent queries will use this cluster.", id.Name, id.Description),
	}, nil), nil
}

// handleGetActiveCluster implements the opensearch_get_active_cluster
// tool.
func (s *Server) handleGetActiveCluster(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	name, url, acquiredAt := s.store.Active()
	if name == "" {
		return s.finalize(map[string]any{
			"cluster":    "unknown",
			"url":        s.settings.FallbackURL,
			"updated_at": "",
		}, nil), nil
	}

	updatedAt := ""
	if !acquiredAt.IsZero() {
		updatedAt = acquiredAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return s.finalize(map[string]any{
		"cluster":    name,
		"url":        url,
		"updated_at": updatedAt,
	}, nil), nil
}
