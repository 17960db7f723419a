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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/spyglass/internal/credential"
	"github.com/tombee/spyglass/internal/log"
	"github.com/tombee/spyglass/internal/mcpserver"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start the MCP server. Tools are exposed over stdio, so this is what
an MCP client configuration should launch. All logging goes to stderr;
stdout carries only the protocol.

Credential refreshes run headless. If a refresh fails because the
cached IdP session has expired, run 'spyglass login <cluster>' in a
terminal to sign in again.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pick up cookies.json changes made by a concurrent `spyglass login`
	// without a restart.
	watcher, err := credential.NewWatcher(app.store, log.WithComponent(app.logger, "watcher"))
	if err != nil {
		app.logger.Warn("credential file watching disabled", log.Error(err))
	} else {
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	server, err := mcpserver.NewServer(mcpserver.ServerConfig{
		Version:   version,
		Directory: app.directory,
		Store:     app.store,
		Executor:  app.executor,
		Refresher: app.orchestrator,
		Settings:  app.settings,
		Logger:    log.WithComponent(app.logger, "mcp"),
	})
	if err != nil {
		return err
	}

	return server.Run(ctx)
}
