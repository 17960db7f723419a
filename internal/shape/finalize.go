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
)

// Finalize serializes a response with stable two-space indentation and
// applies the overall byte cap. When the cap fires, a warning header is
// prepended carrying the full tag list; the header itself is never cut,
// only the body is, and the total stays within maxBytes. maxBytes <= 0
// disables the cap.
//
// The returned tag slice includes the truncation tag when it fired.
func Finalize(response any, tags []string, maxBytes int) (string, []string) {
	serialized, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		// The response objects we build are always serializable; a
		// failure here means a raw passthrough carried something
		// exotic. Degrade to an error placeholder rather than fail.
		serialized = []byte(fmt.Sprintf(`{"error": "unserializable response: %s"}`, err))
	}

	if maxBytes <= 0 || len(serialized) <= maxBytes {
		return string(serialized), tags
	}

	tags = append(tags, fmt.Sprintf("response_truncated_at_%s", limitLabel(maxBytes)))

	header, err := json.MarshalIndent(map[string]any{
		"_meta": map[string]any{
			"warning":             truncationWarning,
			"applied_operations":  tags,
			"original_size_bytes": len(serialized),
			"truncated_to_bytes":  maxBytes,
		},
	}, "", "  ")
	if err != nil {
		header = []byte(`{"_meta": {"warning": "response truncated"}}`)
	}

	// The header always survives whole; the body absorbs the cut.
	budget := maxBytes - len(header) - 1
	if budget < 0 {
		budget = 0
	}
	if budget > len(serialized) {
		budget = len(serialized)
	}
	return string(header) + "\n" + string(serialized[:budget]), tags
}

// limitLabel renders a byte limit the way callers expect to read it:
// whole kilobytes as NKB, anything else in bytes.
func limitLabel(maxBytes int) string {
	if maxBytes%1000 == 0 {
		return fmt.Sprintf("%dKB", maxBytes/1000)
	}
	return fmt.Sprintf("%dB", maxBytes)
}
