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

// Package errors defines the error taxonomy used across spyglass.
//
// Only AuthDeniedError triggers recovery behavior (credential refresh
// followed by a single retry). Every other kind is terminal for the
// request that observed it.
package errors

import (
	"fmt"
	"time"
)

// AuthDeniedError reports that the upstream rejected the session cookies.
// The executor reacts by marking the current bundle stale, refreshing,
// and retrying the call exactly once.
type AuthDeniedError struct {
	// Cluster is the cluster short name the denied call targeted.
	Cluster string

	// StatusCode is the HTTP status the upstream returned (typically 401).
	StatusCode int

	// Retried is true when the denial happened on the post-refresh retry,
	// meaning no further recovery will be attempted.
	Retried bool
}

// Error implements the error interface.
func (e *AuthDeniedError) Error() string {
	if e.Retried {
		return fmt.Sprintf("authentication denied by %s after credential refresh (HTTP %d)", e.Cluster, e.StatusCode)
	}
	return fmt.Sprintf("authentication denied by %s (HTTP %d)", e.Cluster, e.StatusCode)
}

// RefreshUnavailableError reports that the orchestrator could not obtain
// fresh credentials. It always carries a concrete manual remediation.
type RefreshUnavailableError struct {
	// Cluster is the cluster short name the refresh targeted.
	Cluster string

	// Reason explains why the refresh failed (no cached SSO session,
	// cookies never appeared, deadline exceeded).
	Reason string

	// Remediation is the manual step that restores access.
	Remediation string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *RefreshUnavailableError) Error() string {
	return fmt.Sprintf("credential refresh for %s failed: %s", e.Cluster, e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *RefreshUnavailableError) Unwrap() error {
	return e.Cause
}

// UpstreamKind classifies a non-auth upstream failure.
type UpstreamKind string

const (
	// UpstreamTimeout means the call exceeded its deadline.
	UpstreamTimeout UpstreamKind = "timeout"
	// UpstreamUnavailable means the transport failed before a response arrived.
	UpstreamUnavailable UpstreamKind = "unavailable"
	// UpstreamStatus means the upstream answered with a non-auth error status
	// (5xx, 429, malformed body, ...).
	UpstreamStatus UpstreamKind = "status"
)

// UpstreamError represents a transport or upstream failure other than an
// authentication denial. It never triggers a credential refresh.
type UpstreamError struct {
	// Cluster is the cluster short name the call targeted.
	Cluster string

	// Kind classifies the failure.
	Kind UpstreamKind

	// StatusCode is the HTTP status, when one was received.
	StatusCode int

	// Message is the human-readable error description.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s error", e.Kind)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Cluster != "" {
		msg = fmt.Sprintf("%s from %s", msg, e.Cluster)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// ConfigurationError represents problems detected before any network call
// is attempted: unknown cluster names, clusters without a search endpoint,
// invalid settings.
type ConfigurationError struct {
	// Key identifies the offending input or setting (e.g. "cluster").
	Key string

	// Reason explains what is wrong.
	Reason string

	// Suggestion provides actionable guidance for fixing the error.
	Suggestion string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	// Resource is the type of resource (e.g. "cluster", "credential bundle").
	Resource string

	// ID is the identifier that was not found.
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// TimeoutError represents operation timeouts outside the upstream call
// path, such as waiting on a refresh outcome.
type TimeoutError struct {
	// Operation describes what timed out (e.g. "refresh wait").
	Operation string

	// Duration is how long the operation ran before timing out.
	Duration time.Duration

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
