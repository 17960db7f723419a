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

// Package refresh obtains fresh session credentials by replaying the
// SSO sign-on flow through a browser automation collaborator.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tombee/spyglass/internal/cluster"
	"github.com/tombee/spyglass/internal/credential"
	"github.com/tombee/spyglass/pkg/errors"
)

// Automator is the browser automation collaborator. Given a cluster, it
// replays the sign-on flow and returns the ordered cookie set, within
// the deadline carried by ctx. Implementations are opaque capabilities;
// tests substitute a deterministic fake.
type Automator interface {
	Refresh(ctx context.Context, id cluster.Identity) ([]credential.Token, error)
}

// Orchestrator drives the Automator and enforces single-flight per
// cluster: at most one automation run is in flight per cluster, and all
// concurrent callers attach to it and receive the same outcome.
type Orchestrator struct {
	automator Automator
	store     *credential.Store
	timeout   time.Duration
	logger    *slog.Logger

	group singleflight.Group
}

// New creates an orchestrator. timeout bounds one automation attempt;
// exceeding it is a refresh failure, never an indefinite hang.
func New(automator Automator, store *credential.Store, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		automator: automator,
		store:     store,
		timeout:   timeout,
		logger:    logger,
	}
}

// Refresh obtains a fresh bundle for the cluster, persists it, and
// returns it. Concurrent callers for the same cluster coalesce into one
// automation run.
//
// A caller whose own context expires abandons the wait and gets a
// timeout error, but the automation run is not cancelled: other waiters
// (and the next request) may still benefit from its outcome.
func (o *Orchestrator) Refresh(ctx context.Context, id cluster.Identity) (credential.Bundle, error) {
	ch := o.group.DoChan(id.Name, func() (interface{}, error) {
		return o.run(ctx, id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return credential.Bundle{}, res.Err
		}
		return res.Val.(credential.Bundle), nil
	case <-ctx.Done():
		return credential.Bundle{}, &errors.TimeoutError{
			Operation: "refresh wait for " + id.Name,
			Duration:  o.timeout,
			Cause:     ctx.Err(),
		}
	}
}

// run performs one automation attempt. It deliberately detaches from
// the triggering caller's cancellation: the attempt is bounded by the
// orchestrator's own timeout instead.
func (o *Orchestrator) run(ctx context.Context, id cluster.Identity) (credential.Bundle, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	started := time.Now()
	o.logger.Info("refreshing credentials", slog.String("cluster", id.Name))

	tokens, err := o.automator.Refresh(runCtx, id)
	if err != nil {
		o.logger.Warn("credential refresh failed",
			slog.String("cluster", id.Name),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err))
		return credential.Bundle{}, &errors.RefreshUnavailableError{
			Cluster:     id.Name,
			Reason:      refreshFailureReason(runCtx, err),
			Remediation: "run `spyglass login " + id.Name + "` to sign in with a browser",
			Cause:       err,
		}
	}

	bundle := credential.Bundle{
		Tokens:     tokens,
		Cluster:    id.Name,
		URL:        id.URL,
		AcquiredAt: time.Now().UTC(),
		Source:     credential.SourceAutomatedRefresh,
	}

	if err := o.store.Replace(runCtx, bundle); err != nil {
		return credential.Bundle{}, errors.Wrap(err, "persisting refreshed bundle")
	}

	o.logger.Info("credential refresh succeeded",
		slog.String("cluster", id.Name),
		slog.Duration("elapsed", time.Since(started)))
	return bundle, nil
}

func refreshFailureReason(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "SSO replay did not complete within the refresh timeout; the cached browser session has likely expired"
	}
	return err.Error()
}
