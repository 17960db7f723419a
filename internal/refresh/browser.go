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

package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tombee/spyglass/internal/cluster"
	"github.com/tombee/spyglass/internal/credential"
)

// cookiePollInterval is how often the automator re-reads the page's
// cookie jar while waiting for the OIDC redirect to complete.
const cookiePollInterval = 500 * time.Millisecond

// BrowserAutomator replays the SSO sign-on flow in Chromium via rod.
//
// The browser profile directory is persistent and exclusively owned by
// this automator: after one interactive login the IdP session lives in
// it, which is what lets later headless runs complete SSO without user
// input. Nothing else in the process touches the profile.
type BrowserAutomator struct {
	// ProfileDir is the persistent Chromium user-data directory.
	ProfileDir string

	// Headless controls browser visibility. Interactive logins
	// (`spyglass login`) run headed so the user can authenticate.
	Headless bool

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Refresh opens the cluster's dashboard URL, waits for the SSO redirect
// chain to finish, and returns the required session cookies in their
// canonical order. It fails when the cookies do not appear before ctx
// expires, which usually means the cached IdP session is gone.
func (a *BrowserAutomator) Refresh(ctx context.Context, id cluster.Identity) ([]credential.Token, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	controlURL, err := launcher.New().
		Headless(a.Headless).
		UserDataDir(a.ProfileDir).
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: id.URL})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", id.URL, err)
	}
	defer page.Close()

	logger.Debug("waiting for SSO redirect", slog.String("cluster", id.Name), slog.String("url", id.URL))

	ticker := time.NewTicker(cookiePollInterval)
	defer ticker.Stop()

	for {
		tokens, err := a.collectCookies(page, id.URL)
		if err == nil {
			logger.Debug("session cookies acquired", slog.String("cluster", id.Name))
			return tokens, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session cookies did not appear: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// collectCookies reads the page's cookie jar and extracts the required
// cookies in canonical order. Returns an error until all of them exist.
func (a *BrowserAutomator) collectCookies(page *rod.Page, url string) ([]credential.Token, error) {
	cookies, err := page.Cookies([]string{url})
	if err != nil {
		return nil, fmt.Errorf("reading cookies: %w", err)
	}

	byName := make(map[string]string, len(cookies))
	for _, c := range cookies {
		byName[c.Name] = c.Value
	}

	tokens := make([]credential.Token, 0, len(credential.RequiredCookies))
	for _, name := range credential.RequiredCookies {
		value, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("cookie %s not set yet", name)
		}
		tokens = append(tokens, credential.Token{Name: name, Value: value})
	}
	return tokens, nil
}
