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

// Package credential manages per-cluster session credential bundles:
// an ordered set of named cookies plus metadata, persisted to disk and
// replaced atomically by the refresh orchestrator.
package credential

import (
	"strings"
	"time"
)

// RequiredCookies are the cookie names the Dashboards OIDC flow sets.
// Order matters: the upstream expects them joined in this order.
var RequiredCookies = []string{"security_authentication", "security_authentication_oidc1"}

// Source records how a bundle was obtained.
type Source string

const (
	// SourceAutomatedRefresh marks bundles produced by the headless SSO replay.
	SourceAutomatedRefresh Source = "automated-refresh"
	// SourceManual marks bundles produced by an interactive `spyglass login`.
	SourceManual Source = "manual"
	// SourceStaticFallback marks bundles read from the SPYGLASS_COOKIE
	// environment variable.
	SourceStaticFallback Source = "static-fallback"
)

// Token is one named secret cookie.
type Token struct {
	Name  string
	Value string
}

// Bundle is the credential set authenticating one cluster.
// Token order is significant and preserved end to end.
type Bundle struct {
	// Tokens is the ordered cookie set.
	Tokens []Token

	// Cluster is the short name of the cluster this bundle authenticates.
	Cluster string

	// URL is the dashboard endpoint the bundle was obtained for.
	URL string

	// AcquiredAt is when the bundle was obtained.
	AcquiredAt time.Time

	// Source records how the bundle was obtained.
	Source Source
}

// CookieHeader renders the bundle's tokens as a Cookie header value,
// preserving token order.
func (b Bundle) CookieHeader() string {
	parts := make([]string, 0, len(b.Tokens))
	for _, tok := range b.Tokens {
		parts = append(parts, tok.Name+"="+tok.Value)
	}
	return strings.Join(parts, "; ")
}

// Empty reports whether the bundle carries no tokens.
func (b Bundle) Empty() bool {
	return len(b.Tokens) == 0
}

// ParseCookieHeader parses a Cookie header value into an ordered token
// list. Malformed fragments (no '=') are dropped.
func ParseCookieHeader(header string) []Token {
	if header == "" {
		return nil
	}
	var tokens []Token
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		tokens = append(tokens, Token{Name: name, Value: value})
	}
	return tokens
}
