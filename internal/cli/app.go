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

package cli

import (
	"log/slog"

	"github.com/tombee/spyglass/internal/cluster"
	"github.com/tombee/spyglass/internal/config"
	"github.com/tombee/spyglass/internal/credential"
	"github.com/tombee/spyglass/internal/executor"
	"github.com/tombee/spyglass/internal/log"
	"github.com/tombee/spyglass/internal/refresh"
	"github.com/tombee/spyglass/pkg/errors"
	"github.com/tombee/spyglass/pkg/httpclient"
)

// app holds the assembled collaborators every command works with.
type app struct {
	settings     config.Settings
	logger       *slog.Logger
	directory    *cluster.Directory
	store        *credential.Store
	orchestrator *refresh.Orchestrator
	executor     *executor.Executor
}

// buildApp assembles the application graph: settings and logging from
// the environment, the cluster registry (with any user override), the
// credential store backed by cookies.json and the OS keyring, the
// browser refresh orchestrator, and the search executor.
//
// headless controls browser visibility during credential refreshes.
// The MCP server always runs headless; `spyglass login` runs headed so
// the user can complete the IdP prompts.
func buildApp(headless bool) (*app, error) {
	logCfg := log.FromEnv()
	if verbose {
		logCfg.Level = "debug"
	}
	logger := log.New(logCfg)

	settings := config.SettingsFromEnv()

	credentialsPath, err := config.CredentialsPath()
	if err != nil {
		return nil, errors.Wrap(err, "resolving credentials path")
	}
	profileDir, err := config.BrowserProfileDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolving browser profile directory")
	}
	registryPath, err := config.RegistryOverridePath()
	if err != nil {
		return nil, errors.Wrap(err, "resolving cluster registry path")
	}

	directory, err := cluster.Load(registryPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading cluster registry")
	}

	// A nil keyring disables that link of the resolution chain; the
	// store falls through to the env cookie.
	var ring credential.Keyring
	if system := credential.NewSystemKeyring(); system != nil {
		ring = system
	}

	store := credential.NewStore(credential.StoreConfig{
		Path:           credentialsPath,
		Keyring:        ring,
		FallbackCookie: settings.FallbackCookie,
		FallbackURL:    settings.FallbackURL,
		Logger:         log.WithComponent(logger, "credential"),
	})

	automator := &refresh.BrowserAutomator{
		ProfileDir: profileDir,
		Headless:   headless,
		Logger:     log.WithComponent(logger, "browser"),
	}
	orchestrator := refresh.New(automator, store, settings.RefreshTimeout,
		log.WithComponent(logger, "refresh"))

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = settings.RequestTimeout
	httpCfg.InsecureSkipVerify = !settings.VerifySSL
	httpClient, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, errors.Wrap(err, "building HTTP client")
	}

	exec := executor.New(executor.Config{
		HTTPClient: httpClient,
		Store:      store,
		Refresher:  orchestrator,
		OSDVersion: settings.OSDVersion,
		Logger:     log.WithComponent(logger, "executor"),
	})

	return &app{
		settings:     settings,
		logger:       logger,
		directory:    directory,
		store:        store,
		orchestrator: orchestrator,
		executor:     exec,
	}, nil
}
