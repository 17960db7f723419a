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

// Package cli implements the spyglass command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Version information, set from main via SetVersion.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// SetVersion sets the version information (called from main).
func SetVersion(v, c, b string) {
	version, commit, buildDate = v, c, b
}

// GetVersion returns version information.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// verbose is the shared --verbose flag value.
var verbose bool

// NewRootCommand creates the root Cobra command for spyglass.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spyglass",
		Short: "Spyglass - OpenSearch access for AI assistants",
		Long: `Spyglass queries OpenSearch clusters that sit behind session-cookie
SSO and exposes the results as MCP tools. It signs in through the
cluster's browser SSO flow, caches the session cookies, and refreshes
them automatically when the cluster starts rejecting them.

Run 'spyglass login <cluster>' once to sign in interactively.
Run 'spyglass serve' to start the MCP server over stdio.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")

	cmd.AddCommand(
		NewServeCommand(),
		NewLoginCommand(),
		NewClustersCommand(),
		NewVersionCommand(),
	)

	return cmd
}
