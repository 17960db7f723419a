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

package shape

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testWindow = TimeRange{From: "2026-08-30T11:45:00.000Z", To: "2026-08-30T12:00:00.000Z"}

// rawResponse builds a search response with n hits whose _source is
// given by build.
func rawResponse(total, n int, build func(i int) map[string]any) map[string]any {
	hits := make([]any, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, map[string]any{
			"_index":  "app-logs-000042",
			"_source": build(i),
		})
	}
	return map[string]any{
		"hits": map[string]any{
			"total": map[string]any{"value": float64(total), "relation": "eq"},
			"hits":  hits,
		},
	}
}

func logSource(i int) map[string]any {
	return map[string]any{
		"@timestamp": fmt.Sprintf("2026-08-30T11:5%d:00.000Z", i%10),
		"log":        fmt.Sprintf("request %d completed", i),
		"level":      "INFO",
		"kubernetes": map[string]any{
			"namespace_name": "payments",
			"pod_name":       fmt.Sprintf("payments-api-%d", i),
			"labels":         map[string]any{"app": "payments-api", "release": "v42"},
			"annotations":    map[string]any{"checksum/config": strings.Repeat("a", 64)},
		},
	}
}

func TestSummaryOnly(t *testing.T) {
	raw := rawResponse(250, 0, logSource)

	result, tags := Search(raw, testWindow, 0, Config{SummaryOnly: true, AutoPrune: true})

	assert.Equal(t, []string{"summary_only"}, tags)
	assert.Equal(t, 250, result["total_hits"])
	assert.Equal(t, testWindow, result["time_range"])
	assert.NotContains(t, result, "hits", "summary output carries no hits")
	assert.NotContains(t, result, "returned")
}

func TestFieldFilterProjectsKeys(t *testing.T) {
	raw := rawResponse(2, 2, logSource)
	fields := []string{"log", "kubernetes.namespace_name"}

	result, tags := Search(raw, testWindow, 100, Config{Fields: fields, MaxCharsPerHit: 2000})

	assert.Contains(t, tags, "field_filter:log,kubernetes.namespace_name")
	for _, item := range result["hits"].([]any) {
		entry := item.(map[string]any)
		for key := range entry {
			assert.Contains(t, fields, key, "output keys must be a subset of the allow-list")
		}
		assert.Equal(t, "payments", entry["kubernetes.namespace_name"])
	}
}

func TestFieldFilterDropsMissingFields(t *testing.T) {
	raw := rawResponse(1, 1, logSource)

	result, _ := Search(raw, testWindow, 100, Config{Fields: []string{"log", "no.such.path"}, MaxCharsPerHit: 2000})

	entry := result["hits"].([]any)[0].(map[string]any)
	assert.Contains(t, entry, "log")
	assert.NotContains(t, entry, "no.such.path")
}

func TestAutoPruneRemovesVerboseSubstructures(t *testing.T) {
	raw := rawResponse(1, 1, logSource)

	result, tags := Search(raw, testWindow, 100, Config{AutoPrune: true, MaxCharsPerHit: 2000})

	assert.Contains(t, tags, "auto_prune:kubernetes.labels,kubernetes.annotations")
	entry := result["hits"].([]any)[0].(map[string]any)
	k8s := entry["kubernetes"].(map[string]any)
	assert.NotContains(t, k8s, "labels")
	assert.NotContains(t, k8s, "annotations")
	assert.Equal(t, "payments", k8s["namespace_name"])
}

func TestAutoPruneDisabledKeepsEverything(t *testing.T) {
	raw := rawResponse(1, 1, logSource)

	result, tags := Search(raw, testWindow, 100, Config{AutoPrune: false, MaxCharsPerHit: 5000})

	for _, tag := range tags {
		assert.NotContains(t, tag, "auto_prune")
	}
	entry := result["hits"].([]any)[0].(map[string]any)
	k8s := entry["kubernetes"].(map[string]any)
	assert.Contains(t, k8s, "labels")
}

func TestAutoPruneDoesNotMutateInput(t *testing.T) {
	raw := rawResponse(1, 1, logSource)

	Search(raw, testWindow, 100, Config{AutoPrune: true, MaxCharsPerHit: 2000})

	source := raw["hits"].(map[string]any)["hits"].([]any)[0].(map[string]any)["_source"].(map[string]any)
	k8s := source["kubernetes"].(map[string]any)
	assert.Contains(t, k8s, "labels", "shaping must not mutate the raw response")
}

func TestPerHitCapTruncatesAndCounts(t *testing.T) {
	// 10 hits, 3 of which blow the 2000-char cap.
	raw := rawResponse(10, 10, func(i int) map[string]any {
		source := logSource(i)
		if i < 3 {
			source["log"] = strings.Repeat("x", 3000)
		}
		return source
	})

	result, tags := Search(raw, testWindow, 100, Config{AutoPrune: true, MaxCharsPerHit: 2000})

	assert.Contains(t, tags, "hits_truncated:3/10")

	truncated := 0
	for _, item := range result["hits"].([]any) {
		entry := item.(map[string]any)
		if entry["_truncated"] == true {
			truncated++
			assert.LessOrEqual(t, len(entry["preview"].(string)), 2000)
			assert.Greater(t, entry["_size_bytes"].(int), 2000)
		}
	}
	assert.Equal(t, 3, truncated)
}

func TestPartialResultsTag(t *testing.T) {
	raw := rawResponse(50000, 100, logSource)

	_, tags := Search(raw, testWindow, 100, Config{AutoPrune: true, MaxCharsPerHit: 2000})

	assert.Contains(t, tags, "partial_results:100_of_50000")
}

func TestNoPartialResultsWhenComplete(t *testing.T) {
	raw := rawResponse(5, 5, logSource)

	_, tags := Search(raw, testWindow, 100, Config{AutoPrune: true, MaxCharsPerHit: 2000})

	for _, tag := range tags {
		assert.NotContains(t, tag, "partial_results")
	}
}

func TestTagOrderIsPipelineOrder(t *testing.T) {
	raw := rawResponse(50000, 10, func(i int) map[string]any {
		source := logSource(i)
		source["log"] = strings.Repeat("x", 3000)
		return source
	})

	_, tags := Search(raw, testWindow, 100, Config{
		Fields:         []string{"log"},
		AutoPrune:      true,
		MaxCharsPerHit: 2000,
	})

	assert.Equal(t, []string{
		"field_filter:log",
		"auto_prune:kubernetes.labels,kubernetes.annotations",
		"hits_truncated:10/10",
		"partial_results:100_of_50000",
	}, tags)
}

func TestDeterminism(t *testing.T) {
	raw := rawResponse(50000, 10, func(i int) map[string]any {
		source := logSource(i)
		if i%2 == 0 {
			source["log"] = strings.Repeat("y", 2500)
		}
		return source
	})
	cfg := Config{AutoPrune: true, MaxCharsPerHit: 2000, MaxBytes: 4000}

	run := func() (string, []string) {
		result, tags := Search(raw, testWindow, 100, cfg)
		return Finalize(result, tags, cfg.MaxBytes)
	}

	out1, tags1 := run()
	out2, tags2 := run()
	assert.Equal(t, out1, out2, "identical input and config must produce byte-identical output")
	assert.Equal(t, tags1, tags2)
}

func TestTotalHitsBareNumber(t *testing.T) {
	raw := map[string]any{
		"hits": map[string]any{
			"total": float64(12),
			"hits":  []any{},
		},
	}

	result, _ := Search(raw, testWindow, 100, DefaultConfig())
	assert.Equal(t, 12, result["total_hits"])
}

func TestEmptyResponse(t *testing.T) {
	result, tags := Search(map[string]any{}, testWindow, 100, DefaultConfig())

	assert.Equal(t, 0, result["total_hits"])
	assert.Equal(t, 0, result["returned"])
	assert.Empty(t, result["hits"])
	assert.Equal(t, []string{"auto_prune:kubernetes.labels,kubernetes.annotations"}, tags)
}

func TestShapingPanicFallsBackToRaw(t *testing.T) {
	// A hit whose _source defeats the pipeline: json.Marshal fails on
	// channels, which panics the per-hit serialization step.
	raw := map[string]any{
		"hits": map[string]any{
			"total": map[string]any{"value": float64(1)},
			"hits": []any{
				map[string]any{"_index": "x", "_source": map[string]any{"bad": make(chan int)}},
			},
		},
	}

	result, tags := Search(raw, testWindow, 100, DefaultConfig())

	assert.Equal(t, []string{"shaping_skipped"}, tags)
	// The raw response comes back untouched.
	assert.Equal(t, raw, result)
}

func TestFinalizeUnderCap(t *testing.T) {
	out, tags := Finalize(map[string]any{"total_hits": 1}, []string{"summary_only"}, 15000)

	assert.Equal(t, []string{"summary_only"}, tags)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, float64(1), parsed["total_hits"])
}

func TestFinalizeOverallCap(t *testing.T) {
	big := map[string]any{"payload": strings.Repeat("z", 20000)}

	out, tags := Finalize(big, []string{"auto_prune:kubernetes.labels,kubernetes.annotations"}, 15000)

	assert.Contains(t, tags, "response_truncated_at_15KB")
	assert.LessOrEqual(t, len(out), 15000)

	// The warning header is the first element and survives intact.
	header := out[:strings.Index(out, "\n}")+2]
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(header), &parsed))
	meta := parsed["_meta"].(map[string]any)
	assert.Contains(t, meta["warning"], "truncated")
	assert.Equal(t, float64(15000), meta["truncated_to_bytes"])

	ops := meta["applied_operations"].([]any)
	assert.Equal(t, "auto_prune:kubernetes.labels,kubernetes.annotations", ops[0])
	assert.Equal(t, "response_truncated_at_15KB", ops[1])
}

func TestFinalizeHeaderNeverCut(t *testing.T) {
	big := map[string]any{"payload": strings.Repeat("z", 5000)}

	// A cap smaller than the header: the header still comes out whole.
	out, tags := Finalize(big, nil, 100)

	assert.Contains(t, tags, "response_truncated_at_100B")
	header := out[:strings.Index(out, "\n}")+2]
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(header), &parsed))
	assert.Contains(t, parsed, "_meta")
}

func TestFinalizeNoCapWhenDisabled(t *testing.T) {
	big := map[string]any{"payload": strings.Repeat("z", 20000)}

	out, tags := Finalize(big, nil, 0)

	assert.Empty(t, tags)
	assert.Greater(t, len(out), 15000)
}
