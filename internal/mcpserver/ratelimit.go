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
	"golang.org/x/time/rate"
)

// RateLimiter bounds how fast tool calls may hit the upstream cluster.
// Searches get a tighter budget than the overall call stream because
// they are the expensive operation.
type RateLimiter struct {
	search *rate.Limiter
	call   *rate.Limiter
}

// NewRateLimiter creates a rate limiter.
// searchesPerMinute: max search/aggregate calls per minute.
// callsPerMinute: max total tool calls per minute.
func NewRateLimiter(searchesPerMinute, callsPerMinute int) *RateLimiter {
	return &RateLimiter{
		search: rate.NewLimiter(rate.Limit(float64(searchesPerMinute)/60.0), searchesPerMinute),
		call:   rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute),
	}
}

// AllowSearch checks if a search or aggregation call is allowed.
func (rl *RateLimiter) AllowSearch() bool {
	return rl.call.Allow() && rl.search.Allow()
}

// AllowCall checks if any tool call is allowed.
func (rl *RateLimiter) AllowCall() bool {
	return rl.call.Allow()
}
