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

// Package shape reduces raw search responses to fit a bounded response
// budget and annotates every transform with a machine-readable tag.
//
// The pipeline runs in a fixed order: summary, field filter, auto
// prune, per-hit cap, partial-results note, overall byte cap. Identical
// input and config always produce byte-identical output and the same
// tag sequence. Shaping never fails the caller: an internal error
// degrades to the unshaped result plus a shaping_skipped tag.
package shape

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Defaults for the shaping budget.
const (
	DefaultMaxCharsPerHit = 2000
	DefaultMaxBytes       = 15000
)

// Tag constants for transforms whose tags carry no parameters.
const (
	TagSummaryOnly    = "summary_only"
	TagShapingSkipped = "shaping_skipped"
)

// autoPrunedKeys are the known-verbose substructures removed from each
// hit's kubernetes block when auto-pruning is on. The tag lists them so
// callers know exactly what disappeared.
var autoPrunedKeys = []string{"labels", "annotations"}

// truncationWarning is the text carried by the warning header when the
// overall byte cap fires.
const truncationWarning = "Response was truncated. Use summary_only, a fields filter, or a smaller size to get complete results."

// Config holds the per-call shaping options.
type Config struct {
	// SummaryOnly replaces the result with a count and time span,
	// skipping every later stage.
	SummaryOnly bool

	// Fields, when non-empty, projects every hit to exactly these keys.
	// Nested paths like "kubernetes.namespace_name" are supported.
	Fields []string

	// AutoPrune removes the known-verbose kubernetes substructures from
	// each hit.
	AutoPrune bool

	// MaxCharsPerHit caps each hit's serialized size; larger hits are
	// replaced by a preview stub.
	MaxCharsPerHit int

	// MaxBytes caps the serialized response as a whole.
	MaxBytes int
}

// DefaultConfig returns the shaping defaults: auto-prune on, 2000 chars
// per hit, 15000 bytes overall.
func DefaultConfig() Config {
	return Config{
		AutoPrune:      true,
		MaxCharsPerHit: DefaultMaxCharsPerHit,
		MaxBytes:       DefaultMaxBytes,
	}
}

// TimeRange is the search window echoed back in shaped responses.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Search shapes a raw search response. requestedSize is the hit count
// the caller asked for; it feeds the partial_results tag. The returned
// object is JSON-serializable and the tag slice lists every transform
// applied, in pipeline order.
//
// A panic anywhere in the pipeline is recovered and the raw response is
// returned unshaped with a shaping_skipped tag.
func Search(raw map[string]any, window TimeRange, requestedSize int, cfg Config) (result map[string]any, tags []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("shaping failed, returning raw response", "panic", fmt.Sprint(r))
			result = raw
			tags = []string{TagShapingSkipped}
		}
	}()
	return search(raw, window, requestedSize, cfg)
}

func search(raw map[string]any, window TimeRange, requestedSize int, cfg Config) (map[string]any, []string) {
	if cfg.MaxCharsPerHit <= 0 {
		cfg.MaxCharsPerHit = DefaultMaxCharsPerHit
	}

	total := totalHits(raw)
	tags := []string{}

	response := map[string]any{
		"total_hits": total,
		"time_range": window,
	}

	if cfg.SummaryOnly {
		tags = append(tags, TagSummaryOnly)
		response["_meta"] = map[string]any{"applied_operations": tags}
		return response, tags
	}

	rawHits := hitList(raw)
	shaped := make([]any, 0, len(rawHits))
	truncated := 0

	for _, hit := range rawHits {
		entry := shapeHit(hit, cfg)

		serialized, err := json.Marshal(entry)
		if err != nil {
			panic(err)
		}
		if len(serialized) > cfg.MaxCharsPerHit {
			entry = map[string]any{
				"_truncated":  true,
				"_size_bytes": len(serialized),
				"preview":     string(serialized[:cfg.MaxCharsPerHit]),
			}
			truncated++
		}
		shaped = append(shaped, entry)
	}

	if len(cfg.Fields) > 0 {
		tags = append(tags, "field_filter:"+strings.Join(cfg.Fields, ","))
	}
	if cfg.AutoPrune {
		tags = append(tags, "auto_prune:kubernetes."+strings.Join(autoPrunedKeys, ",kubernetes."))
	}
	if truncated > 0 {
		tags = append(tags, fmt.Sprintf("hits_truncated:%d/%d", truncated, len(shaped)))
	}
	if total > requestedSize {
		tags = append(tags, fmt.Sprintf("partial_results:%d_of_%d", requestedSize, total))
	}

	response["returned"] = len(shaped)
	response["hits"] = shaped
	response["_meta"] = map[string]any{"applied_operations": tags}
	return response, tags
}

// shapeHit applies field filtering or auto-pruning to one hit.
func shapeHit(hit map[string]any, cfg Config) map[string]any {
	source, _ := hit["_source"].(map[string]any)

	var entry map[string]any
	if len(cfg.Fields) > 0 {
		entry = map[string]any{}
		for _, field := range cfg.Fields {
			if value, ok := nestedValue(source, field); ok {
				entry[field] = value
			}
		}
	} else {
		entry = map[string]any{
			"_index": hit["_index"],
		}
		if source != nil {
			entry["@timestamp"] = source["@timestamp"]
			for key, value := range source {
				entry[key] = value
			}
		}
	}

	if cfg.AutoPrune {
		if k8s, ok := entry["kubernetes"].(map[string]any); ok {
			pruned := make(map[string]any, len(k8s))
			for key, value := range k8s {
				pruned[key] = value
			}
			for _, key := range autoPrunedKeys {
				delete(pruned, key)
			}
			entry["kubernetes"] = pruned
		}
	}
	return entry
}

// nestedValue walks a dotted path through nested objects.
func nestedValue(source map[string]any, path string) (any, bool) {
	var value any = source
	for _, part := range strings.Split(path, ".") {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	if value == nil {
		return nil, false
	}
	return value, true
}

// totalHits extracts the match count, tolerating both the bare-number
// and {value, relation} forms.
func totalHits(raw map[string]any) int {
	hits, _ := raw["hits"].(map[string]any)
	if hits == nil {
		return 0
	}
	switch total := hits["total"].(type) {
	case float64:
		return int(total)
	case map[string]any:
		if value, ok := total["value"].(float64); ok {
			return int(value)
		}
	}
	return 0
}

// hitList extracts the hit objects from a raw response.
func hitList(raw map[string]any) []map[string]any {
	hits, _ := raw["hits"].(map[string]any)
	if hits == nil {
		return nil
	}
	items, _ := hits["hits"].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if hit, ok := item.(map[string]any); ok {
			out = append(out, hit)
		}
	}
	return out
}
