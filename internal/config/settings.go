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

// Package config resolves spyglass file locations and runtime settings.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for runtime settings.
const (
	// DefaultOSDVersion is the osd-version protocol header value.
	DefaultOSDVersion = "2.18.0"

	// DefaultRequestTimeout bounds a single upstream search call.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultRefreshTimeout bounds one browser automation attempt.
	DefaultRefreshTimeout = 60 * time.Second
)

// Settings holds runtime configuration resolved from the environment.
type Settings struct {
	// OSDVersion is sent as the osd-version header on every upstream call.
	OSDVersion string

	// VerifySSL controls TLS certificate verification for upstream calls.
	// Some on-prem clusters run with self-signed certificates.
	VerifySSL bool

	// RequestTimeout bounds a single upstream call.
	RequestTimeout time.Duration

	// RefreshTimeout bounds one browser automation attempt.
	RefreshTimeout time.Duration

	// FallbackURL is used when no persisted record names a cluster
	// (OPENSEARCH_URL). Empty means no fallback endpoint.
	FallbackURL string

	// FallbackCookie is the lowest-priority credential source
	// (SPYGLASS_COOKIE). Empty means no static fallback.
	FallbackCookie string
}

// SettingsFromEnv resolves Settings from environment variables:
//   - OSD_VERSION (default 2.18.0)
//   - OPENSEARCH_VERIFY_SSL (default true)
//   - OPENSEARCH_URL (fallback endpoint)
//   - SPYGLASS_COOKIE (static fallback credential)
//   - SPYGLASS_REQUEST_TIMEOUT_SECONDS, SPYGLASS_REFRESH_TIMEOUT_SECONDS
func SettingsFromEnv() Settings {
	s := Settings{
		OSDVersion:     DefaultOSDVersion,
		VerifySSL:      true,
		RequestTimeout: DefaultRequestTimeout,
		RefreshTimeout: DefaultRefreshTimeout,
		FallbackURL:    strings.TrimRight(os.Getenv("OPENSEARCH_URL"), "/"),
		FallbackCookie: os.Getenv("SPYGLASS_COOKIE"),
	}

	if v := os.Getenv("OSD_VERSION"); v != "" {
		s.OSDVersion = v
	}

	if v := os.Getenv("OPENSEARCH_VERIFY_SSL"); v != "" {
		s.VerifySSL = strings.ToLower(v) != "false"
	}

	if v := os.Getenv("SPYGLASS_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			s.RequestTimeout = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("SPYGLASS_REFRESH_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			s.RefreshTimeout = time.Duration(secs) * time.Second
		}
	}

	return s
}
