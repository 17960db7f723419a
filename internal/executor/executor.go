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

// Package executor sends search bodies to a cluster's internal search
// proxy and owns the recovery protocol around authentication denials:
// mark stale, refresh once, retry once.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tombee/spyglass/internal/cluster"
	"github.com/tombee/spyglass/internal/credential"
	"github.com/tombee/spyglass/pkg/errors"
)

// searchPath is the dashboard's internal search proxy. Going through it
// rather than the REST API means session cookies are the only
// credential needed, and long numerals survive JSON round-tripping.
const searchPath = "/internal/search/opensearch-with-long-numerals"

// errorBodyLimit bounds how much of an upstream error body is carried
// into error messages.
const errorBodyLimit = 2000

// Refresher obtains fresh credentials for a cluster. Satisfied by
// *refresh.Orchestrator.
type Refresher interface {
	Refresh(ctx context.Context, id cluster.Identity) (credential.Bundle, error)
}

// Config assembles an Executor's collaborators.
type Config struct {
	// HTTPClient performs the upstream calls. Required.
	HTTPClient *http.Client

	// Store resolves and invalidates credential bundles. Required.
	Store *credential.Store

	// Refresher obtains fresh bundles when the cached one is missing,
	// stale, or denied. Required.
	Refresher Refresher

	// OSDVersion is sent as the osd-version header. The proxy rejects
	// requests whose version does not match the dashboard build.
	OSDVersion string

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// Now supplies the preference timestamp. Defaults to time.Now;
	// tests pin it.
	Now func() time.Time
}

// Executor performs authenticated search calls against cluster search
// proxies.
type Executor struct {
	client     *http.Client
	store      *credential.Store
	refresher  Refresher
	osdVersion string
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Executor from cfg.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		client:     cfg.HTTPClient,
		store:      cfg.Store,
		refresher:  cfg.Refresher,
		osdVersion: cfg.OSDVersion,
		logger:     logger,
		now:        now,
	}
}

// Search sends body against index on the given cluster and returns the
// raw search response.
//
// Credential handling: the cached bundle is used unless missing or
// marked stale, in which case a refresh happens before the first
// attempt. An authentication denial on the first attempt triggers at
// most one refresh and one retry; a denial on the retry is terminal.
// Non-auth failures never trigger a refresh.
func (e *Executor) Search(ctx context.Context, id cluster.Identity, index string, body map[string]any) (map[string]any, error) {
	if !id.Queryable() {
		return nil, &errors.ConfigurationError{
			Key:        "cluster",
			Reason:     fmt.Sprintf("cluster %q has no search endpoint", id.Name),
			Suggestion: "pick a queryable cluster (see the cluster list) or add a url to its registry entry",
		}
	}

	bundle, err := e.currentBundle(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := e.attempt(ctx, id, bundle, index, body)
	var denied *errors.AuthDeniedError
	if !errors.As(err, &denied) {
		return result, err
	}

	// Denied: invalidate, refresh, retry exactly once.
	e.logger.Info("authentication denied, refreshing credentials",
		slog.String("cluster", id.Name),
		slog.Int("status", denied.StatusCode))
	e.store.MarkStale(id.Name)

	bundle, err = e.refresher.Refresh(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err = e.attempt(ctx, id, bundle, index, body)
	if errors.As(err, &denied) {
		denied.Retried = true
		return nil, denied
	}
	return result, err
}

// currentBundle returns the cached bundle, refreshing up front when
// nothing usable is cached.
func (e *Executor) currentBundle(ctx context.Context, id cluster.Identity) (credential.Bundle, error) {
	if e.store.Stale(id.Name) {
		return e.refresher.Refresh(ctx, id)
	}
	bundle, err := e.store.Get(ctx, id.Name)
	if err == nil {
		return bundle, nil
	}
	var notFound *errors.NotFoundError
	if errors.As(err, &notFound) {
		return e.refresher.Refresh(ctx, id)
	}
	return credential.Bundle{}, err
}

// attempt performs one POST to the search proxy.
func (e *Executor) attempt(ctx context.Context, id cluster.Identity, bundle credential.Bundle, index string, body map[string]any) (map[string]any, error) {
	payload := map[string]any{
		"params": map[string]any{
			"index":      index,
			"body":       body,
			"preference": e.now().UnixMilli(),
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding search payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, id.URL+searchPath, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "building search request")
	}

	// The proxy only answers requests that look like they came from the
	// dashboard UI: matching version, XSRF marker, and browser-shaped
	// Origin/Referer.
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("osd-xsrf", "osd-fetch")
	req.Header.Set("osd-version", e.osdVersion)
	req.Header.Set("Origin", id.URL)
	req.Header.Set("Referer", id.URL+"/app/data-explorer/discover")
	req.Header.Set("Cookie", bundle.CookieHeader())

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.classifyTransportError(ctx, id, err)
	}
	defer resp.Body.Close()

	e.logger.Debug("search request completed",
		slog.String("cluster", id.Name),
		slog.String("index", index),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)))

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &errors.AuthDeniedError{Cluster: id.Name, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &errors.UpstreamError{
			Cluster:    id.Name,
			Kind:       errors.UpstreamStatus,
			StatusCode: resp.StatusCode,
			Message:    string(snippet),
		}
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &errors.UpstreamError{
			Cluster: id.Name,
			Kind:    errors.UpstreamStatus,
			Message: "malformed search response",
			Cause:   err,
		}
	}

	// The proxy wraps the search result; unwrap when present.
	if raw, ok := decoded["rawResponse"].(map[string]any); ok {
		return raw, nil
	}
	return decoded, nil
}

// classifyTransportError maps transport failures onto the upstream
// error taxonomy.
func (e *Executor) classifyTransportError(ctx context.Context, id cluster.Identity, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return &errors.UpstreamError{
			Cluster: id.Name,
			Kind:    errors.UpstreamTimeout,
			Message: "search request exceeded its deadline",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "search request canceled")
	}
	return &errors.UpstreamError{
		Cluster: id.Name,
		Kind:    errors.UpstreamUnavailable,
		Message: "search endpoint unreachable",
		Cause:   err,
	}
}
