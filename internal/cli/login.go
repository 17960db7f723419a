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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/spyglass/internal/credential"
	"github.com/tombee/spyglass/pkg/errors"
)

// loginTimeout bounds one interactive sign-in. Generous because the
// user may have to type credentials and approve an MFA prompt.
const loginTimeout = 5 * time.Minute

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "login <cluster>",
		Short: "Sign in to a cluster through its browser SSO flow",
		Long: `Open the cluster's dashboard in a browser window and wait for the SSO
sign-on to complete. The session cookies are persisted and the cluster
becomes the active one, so a running 'spyglass serve' picks them up
without a restart.

The browser profile is kept between runs. After one interactive login
the IdP session lives in it, which lets later automated refreshes
complete without user input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, args[0], headless)
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window (only works while the cached IdP session is still valid)")

	return cmd
}

func runLogin(cmd *cobra.Command, name string, headless bool) error {
	app, err := buildApp(headless)
	if err != nil {
		return err
	}

	id, err := app.directory.Lookup(name)
	if err != nil {
		return fmt.Errorf("unknown cluster %q (run 'spyglass clusters' for valid names)", name)
	}
	if !id.Queryable() {
		return fmt.Errorf("%q does not have a search endpoint: %s", id.Name, id.Description)
	}

	if !headless {
		fmt.Fprintf(cmd.OutOrStdout(), "Opening %s - complete the sign-in in the browser window...\n", id.URL)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	bundle, err := app.orchestrator.Refresh(ctx, id)
	if err != nil {
		var refreshErr *errors.RefreshUnavailableError
		if errors.As(err, &refreshErr) {
			return fmt.Errorf("sign-in to %s did not complete: %s", id.Name, refreshErr.Reason)
		}
		return err
	}

	// Interactive sign-ins are recorded as manual so the record shows
	// where the cookies came from.
	bundle.Source = credential.SourceManual
	if err := app.store.Replace(ctx, bundle); err != nil {
		return errors.Wrap(err, "persisting credentials")
	}
	if err := app.store.SetActive(ctx, id.Name); err != nil {
		return errors.Wrap(err, "recording active cluster")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in to %s (%d cookies). It is now the active cluster.\n",
		id.Name, len(bundle.Tokens))
	return nil
}
