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
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/spyglass/internal/query"
	"github.com/tombee/spyglass/internal/shape"
)

// indexCount is one entry in the opensearch_get_indices result.
type indexCount struct {
	Index    string `json:"index"`
	DocCount int    `json:"doc_count"`
}

// handleGetIndices implements the opensearch_get_indices tool. Index
// discovery runs as a terms aggregation on _index over the last hour,
// since the REST cat APIs are not reachable through the search proxy.
func (s *Server) handleGetIndices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowSearch() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	pattern := request.GetString("pattern", "*")
	if pattern == "" {
		pattern = "*"
	}

	now := time.Now().UTC()
	from := now.Add(-time.Hour).Format(query.TimestampFormat)
	to := now.Format(query.TimestampFormat)

	id, err := s.activeIdentity()
	if err != nil {
		return failureResponse(err), nil
	}

	raw, err := s.executor.Search(ctx, id, pattern, query.IndicesAggregation(from, to))
	if err != nil {
		return failureResponse(err), nil
	}

	indices := indexBuckets(raw)
	sort.SliceStable(indices, func(i, j int) bool {
		if indices[i].DocCount != indices[j].DocCount {
			return indices[i].DocCount > indices[j].DocCount
		}
		return indices[i].Index < indices[j].Index
	})

	return s.finalize(map[string]any{
		"total_indices": len(indices),
		"time_range":    shape.TimeRange{From: from, To: to},
		"indices":       indices,
	}, nil), nil
}

// indexBuckets extracts the terms aggregation buckets from a raw
// response.
func indexBuckets(raw map[string]any) []indexCount {
	aggs, _ := raw["aggregations"].(map[string]any)
	terms, _ := aggs["indices"].(map[string]any)
	buckets, _ := terms["buckets"].([]any)

	out := make([]indexCount, 0, len(buckets))
	for _, item := range buckets {
		bucket, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, _ := bucket["key"].(string)
		count, _ := bucket["doc_count"].(float64)
		out = append(out, indexCount{Index: key, DocCount: int(count)})
	}
	return out
}

// handleGetMappings implements the opensearch_get_mappings tool: fetch
// one recent document and report its flattened field names and types.
func (s *Server) handleGetMappings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowSearch() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	index, err := request.RequireString("index")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	now := time.Now().UTC()
	body := query.Dashboard{
		TimeFrom: now.Add(-5 * time.Minute).Format(query.TimestampFormat),
		TimeTo:   now.Format(query.TimestampFormat),
		Size:     1,
	}.Build()

	id, err := s.activeIdentity()
	if err != nil {
		return failureResponse(err), nil
	}

	raw, err := s.executor.Search(ctx, id, index, body)
	if err != nil {
		return failureResponse(err), nil
	}

	fields := map[string]string{}
	if sample := sampleSource(raw); sample != nil {
		flattenFields(sample, "", fields)
	}

	return s.finalize(map[string]any{
		"index":  index,
		"fields": fields,
	}, nil), nil
}

// sampleSource pulls the first hit's _source from a raw response.
func sampleSource(raw map[string]any) map[string]any {
	hits, _ := raw["hits"].(map[string]any)
	items, _ := hits["hits"].([]any)
	if len(items) == 0 {
		return nil
	}
	first, _ := items[0].(map[string]any)
	source, _ := first["_source"].(map[string]any)
	return source
}

// flattenFields walks a sample document and records each leaf's dotted
// path and JSON type.
func flattenFields(obj map[string]any, prefix string, out map[string]string) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenFields(v, path, out)
		case []any:
			if len(v) == 0 {
				out[path] = "list (empty)"
			} else {
				out[path] = fmt.Sprintf("list (%s)", jsonTypeName(v[0]))
			}
		default:
			out[path] = jsonTypeName(value)
		}
	}
}

// jsonTypeName names a decoded JSON value's type.
func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	default:
		return fmt.Sprintf("%T", value)
	}
}
