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

// Package mcpserver exposes the cluster search tools over the Model
// Context Protocol via stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/spyglass/internal/cluster"
	"github.com/tombee/spyglass/internal/config"
	"github.com/tombee/spyglass/internal/credential"
	"github.com/tombee/spyglass/internal/executor"
	"github.com/tombee/spyglass/internal/shape"
	"github.com/tombee/spyglass/pkg/errors"
)

// Refresher obtains fresh credentials for a cluster; satisfied by
// *refresh.Orchestrator.
type Refresher interface {
	Refresh(ctx context.Context, id cluster.Identity) (credential.Bundle, error)
}

// ServerConfig assembles the MCP server's collaborators.
type ServerConfig struct {
	// Name is the server name (default: "spyglass").
	Name string

	// Version is the spyglass version.
	Version string

	// Directory resolves cluster short names. Required.
	Directory *cluster.Directory

	// Store holds credential bundles and the active-cluster pointer. Required.
	Store *credential.Store

	// Executor performs upstream search calls. Required.
	Executor *executor.Executor

	// Refresher obtains fresh credentials on cluster switches. Required.
	Refresher Refresher

	// Settings carries runtime configuration.
	Settings config.Settings

	// Logger is used for structured logging. Writes must go to stderr
	// so stdout stays clean for the stdio protocol.
	Logger *slog.Logger
}

// Server wraps the MCP server and exposes the opensearch_* tools.
type Server struct {
	mcpServer   *server.MCPServer
	name        string
	version     string
	directory   *cluster.Directory
	store       *credential.Store
	executor    *executor.Executor
	refresher   Refresher
	settings    config.Settings
	rateLimiter *RateLimiter
	logger      *slog.Logger

	// maxBytes is the overall response budget applied to every tool
	// result.
	maxBytes int
}

// NewServer creates a new MCP server instance.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "spyglass"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Directory == nil || cfg.Store == nil || cfg.Executor == nil || cfg.Refresher == nil {
		return nil, fmt.Errorf("mcpserver: directory, store, executor, and refresher are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		mcpServer:   server.NewMCPServer(cfg.Name, cfg.Version),
		name:        cfg.Name,
		version:     cfg.Version,
		directory:   cfg.Directory,
		store:       cfg.Store,
		executor:    cfg.Executor,
		refresher:   cfg.Refresher,
		settings:    cfg.Settings,
		rateLimiter: NewRateLimiter(30, 100),
		logger:      logger,
		maxBytes:    shape.DefaultMaxBytes,
	}

	s.registerTools()
	return s, nil
}

// registerTools registers the opensearch_* tools with the MCP server.
func (s *Server) registerTools() {
	// Tool: opensearch_search
	s.mcpServer.AddTool(mcp.Tool{
		Name: "opensearch_search",
		Description: "Search logs/documents in OpenSearch using the same query syntax as the Dashboards UI. " +
			"Supports Lucene/KQL query strings with wildcards. " +
			"IMPORTANT: Always include a time range (time_from/time_to) to avoid timeouts on large indices. " +
			"Use ISO 8601 format for times (e.g., '2026-02-05T04:00:00.000Z') or relative like 'now-15m'.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "string",
					"description": "Index name or pattern (e.g., 'container-logs-*')",
				},
				"query_string": map[string]interface{}{
					"type":        "string",
					"description": "Lucene/KQL query string as used in the Dashboards search bar (e.g., 'log:\"*error*\"', 'kubernetes.namespace_name:\"prod\"')",
				},
				"time_from": map[string]interface{}{
					"type":        "string",
					"description": "Start time in ISO 8601 format. Defaults to now-15m.",
				},
				"time_to": map[string]interface{}{
					"type":        "string",
					"description": "End time in ISO 8601 format. Defaults to now.",
				},
				"size": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return (default: 100, max: 1000)",
					"default":     100,
				},
				"summary_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Return only the total hit count and time range, without document contents. Useful for counting results.",
					"default":     false,
				},
				"auto_prune": map[string]interface{}{
					"type":        "boolean",
					"description": "Auto-remove verbose fields (kubernetes.labels, kubernetes.annotations) to reduce response size. Default: true.",
					"default":     true,
				},
				"fields": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "List of specific fields to return (e.g., ['log', '@timestamp', 'kubernetes.namespace_name']). If specified, only these fields are returned.",
				},
				"max_chars_per_hit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum characters per hit. Hits exceeding this are truncated. Default: 2000.",
					"default":     2000,
				},
			},
			Required: []string{"index"},
		},
	}, s.handleSearch)

	// Tool: opensearch_search_raw
	s.mcpServer.AddTool(mcp.Tool{
		Name: "opensearch_search_raw",
		Description: "Search OpenSearch with a raw Query DSL body. For advanced queries not covered by opensearch_search. " +
			"IMPORTANT: Always include a time range filter to avoid timeouts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "string",
					"description": "Index name or pattern",
				},
				"body": map[string]interface{}{
					"type":        "object",
					"description": "Full OpenSearch query body (query, size, sort, aggs, _source, etc.)",
				},
			},
			Required: []string{"index", "body"},
		},
	}, s.handleSearchRaw)

	// Tool: opensearch_get_indices
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "opensearch_get_indices",
		Description: "List indices in the OpenSearch cluster with document counts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Index pattern to filter (e.g., 'logs-*'). Leave empty for all indices.",
				},
			},
		},
	}, s.handleGetIndices)

	// Tool: opensearch_get_mappings
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "opensearch_get_mappings",
		Description: "Get field names and types for an index by inspecting a sample document.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "string",
					"description": "Index name or pattern",
				},
			},
			Required: []string{"index"},
		},
	}, s.handleGetMappings)

	// Tool: opensearch_aggregate
	s.mcpServer.AddTool(mcp.Tool{
		Name: "opensearch_aggregate",
		Description: "Run aggregation queries on OpenSearch data (e.g., counts, averages, histograms, terms). " +
			"IMPORTANT: Always include a time range in the query to avoid timeouts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "string",
					"description": "Index name or pattern",
				},
				"aggs": map[string]interface{}{
					"type":        "object",
					"description": "Aggregation definitions using OpenSearch aggregation DSL",
				},
				"query": map[string]interface{}{
					"type":        "object",
					"description": "Optional query to filter documents before aggregating",
				},
				"size": map[string]interface{}{
					"type":        "integer",
					"description": "Number of hits to return (set to 0 for aggregation-only)",
					"default":     0,
				},
			},
			Required: []string{"index", "aggs"},
		},
	}, s.handleAggregate)

	// Tool: opensearch_cluster_health
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "opensearch_cluster_health",
		Description: "Get basic cluster health info (total docs, shards, response time).",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleClusterHealth)

	// Tool: opensearch_switch_cluster
	s.mcpServer.AddTool(mcp.Tool{
		Name: "opensearch_switch_cluster",
		Description: "Switch to a different OpenSearch cluster. Fetches fresh session cookies via headless SSO " +
			"and updates the active cluster. No restart needed. " +
			"Use opensearch_get_active_cluster to see the current cluster first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cluster": map[string]interface{}{
					"type": "string",
					"description": "Cluster short name (e.g., 'prod-aws-eu-cluster'). " +
						"Use opensearch_get_active_cluster or the cluster registry for valid names.",
				},
			},
			Required: []string{"cluster"},
		},
	}, s.handleSwitchCluster)

	// Tool: opensearch_get_active_cluster
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "opensearch_get_active_cluster",
		Description: "Get the currently active OpenSearch cluster name, URL, and when cookies were last refreshed.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleGetActiveCluster)
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting spyglass MCP server", slog.String("version", s.version))

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// activeIdentity resolves the cluster that tool calls should target:
// the persisted active pointer first, the fallback endpoint second.
func (s *Server) activeIdentity() (cluster.Identity, error) {
	name, url, _ := s.store.Active()
	if name != "" {
		if id, err := s.directory.Lookup(name); err == nil {
			return id, nil
		}
		// Known to the store but not the registry (e.g. a registry
		// override shrank). The persisted URL still works.
		if url != "" {
			return cluster.Identity{Name: name, URL: url}, nil
		}
	}
	if s.settings.FallbackURL != "" {
		return cluster.Identity{Name: "default", URL: s.settings.FallbackURL}, nil
	}
	return cluster.Identity{}, &errors.ConfigurationError{
		Key:        "cluster",
		Reason:     "no active cluster selected",
		Suggestion: "call opensearch_switch_cluster, or set OPENSEARCH_URL",
	}
}

// finalize serializes a tool result under the overall response budget.
func (s *Server) finalize(response any, tags []string) *mcp.CallToolResult {
	out, _ := shape.Finalize(response, tags, s.maxBytes)
	return textResponse(out)
}

// failureResponse renders an error as a structured tool error carrying
// the machine-readable kind and any remediation the error provides.
func failureResponse(err error) *mcp.CallToolResult {
	payload := map[string]any{
		"error":   errors.Kind(err),
		"message": err.Error(),
	}

	var refreshErr *errors.RefreshUnavailableError
	if errors.As(err, &refreshErr) && refreshErr.Remediation != "" {
		payload["action_required"] = refreshErr.Remediation
	}
	var cfgErr *errors.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Suggestion != "" {
		payload["suggestion"] = cfgErr.Suggestion
	}

	encoded, marshalErr := json.MarshalIndent(payload, "", "  ")
	if marshalErr != nil {
		return errorResponse(err.Error())
	}
	return errorResponse(string(encoded))
}

// errorResponse creates an error tool result.
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// textResponse creates a success tool result.
func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
