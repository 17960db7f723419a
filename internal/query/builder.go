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

// Package query builds search bodies in the exact shape the dashboard
// UI itself sends, so the internal search proxy treats our traffic the
// same way it treats a browser's.
package query

import (
	"time"
)

// TimestampFormat is the wire format for time range bounds, matching
// what the dashboard UI emits.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// DefaultWindow is how far back a search looks when the caller gives no
// time range.
const DefaultWindow = 15 * time.Minute

// Highlight markers used by the dashboard UI. Kept verbatim so results
// render identically in either client.
const (
	highlightPreTag  = "@opensearch-dashboards-highlighted-field@"
	highlightPostTag = "@/opensearch-dashboards-highlighted-field@"
)

// Dashboard describes a discover-style search. Zero values fall back to
// dashboard defaults: match_all query, @timestamp descending, UTC.
type Dashboard struct {
	// QueryString is a Lucene query string. Empty means match_all.
	QueryString string

	// TimeFrom and TimeTo bound the @timestamp range. Either may be a
	// formatted timestamp or a relative expression like "now-15m".
	// Empty values omit that bound; both empty omits the range filter.
	TimeFrom string
	TimeTo   string

	// Size is the number of hits to request.
	Size int

	// SortField and SortOrder control result ordering. Defaults:
	// @timestamp descending.
	SortField string
	SortOrder string

	// TimeZone is applied to query_string parsing. Defaults to UTC.
	TimeZone string
}

// Window returns the default search window ending at now, formatted for
// the wire.
func Window(now time.Time) (from, to string) {
	now = now.UTC()
	return now.Add(-DefaultWindow).Format(TimestampFormat), now.Format(TimestampFormat)
}

// Build assembles the full dashboard-format body. The layout (sort,
// stored_fields, docvalue_fields, highlight tags) mirrors what the
// discover UI sends; deviating from it changes how the proxy scores and
// highlights results.
func (d Dashboard) Build() map[string]any {
	sortField := d.SortField
	if sortField == "" {
		sortField = "@timestamp"
	}
	sortOrder := d.SortOrder
	if sortOrder == "" {
		sortOrder = "desc"
	}
	timeZone := d.TimeZone
	if timeZone == "" {
		timeZone = "UTC"
	}

	must := []any{}
	if d.QueryString != "" {
		must = append(must, map[string]any{
			"query_string": map[string]any{
				"query":            d.QueryString,
				"analyze_wildcard": true,
				"time_zone":        timeZone,
			},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	filter := []any{}
	if d.TimeFrom != "" || d.TimeTo != "" {
		filter = append(filter, RangeFilter(d.TimeFrom, d.TimeTo))
	}

	return map[string]any{
		"sort": []any{
			map[string]any{sortField: map[string]any{"order": sortOrder, "unmapped_type": "boolean"}},
		},
		"size":          d.Size,
		"version":       true,
		"stored_fields": []any{"*"},
		"script_fields": map[string]any{},
		"docvalue_fields": []any{
			map[string]any{"field": "@timestamp", "format": "date_time"},
		},
		"_source": map[string]any{"excludes": []any{}},
		"query": map[string]any{
			"bool": map[string]any{
				"must":     must,
				"filter":   filter,
				"should":   []any{},
				"must_not": []any{},
			},
		},
		"highlight": map[string]any{
			"pre_tags":      []any{highlightPreTag},
			"post_tags":     []any{highlightPostTag},
			"fields":        map[string]any{"*": map[string]any{}},
			"fragment_size": 2147483647,
		},
	}
}

// RangeFilter builds an @timestamp range clause. Empty bounds are
// omitted.
func RangeFilter(from, to string) map[string]any {
	rangeBody := map[string]any{}
	if from != "" {
		rangeBody["gte"] = from
	}
	if to != "" {
		rangeBody["lte"] = to
	}
	rangeBody["format"] = "strict_date_optional_time"
	return map[string]any{"range": map[string]any{"@timestamp": rangeBody}}
}

// IndicesAggregation builds the body behind index discovery: a
// zero-size search over the window with a terms aggregation on _index.
func IndicesAggregation(from, to string) map[string]any {
	return map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{RangeFilter(from, to)},
			},
		},
		"aggs": map[string]any{
			"indices": map[string]any{
				"terms": map[string]any{
					"field": "_index",
					"size":  1000,
				},
			},
		},
	}
}

// RecentActivity builds the body behind the cluster health probe: a
// zero-size count of documents in the window.
func RecentActivity(from, to string) map[string]any {
	return map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{RangeFilter(from, to)},
			},
		},
	}
}

// Aggregation builds a caller-supplied aggregation body. query may be
// nil for an unfiltered aggregation.
func Aggregation(aggs map[string]any, queryClause map[string]any, size int) map[string]any {
	body := map[string]any{
		"size": size,
		"aggs": aggs,
	}
	if queryClause != nil {
		body["query"] = queryClause
	}
	return body
}
