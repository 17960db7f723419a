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
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// clusterInfo is one entry in the --json output of 'spyglass clusters'.
type clusterInfo struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	Queryable   bool   `json:"queryable"`
}

// NewClustersCommand creates the clusters command.
func NewClustersCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "List known clusters",
		Long: `List the clusters from the registry, marking the active one. Entries
without a search endpoint are listed but cannot be queried or logged
in to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClusters(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	return cmd
}

func runClusters(cmd *cobra.Command, jsonOut bool) error {
	app, err := buildApp(true)
	if err != nil {
		return err
	}

	active, _, _ := app.store.Active()

	infos := make([]clusterInfo, 0)
	for _, id := range app.directory.List() {
		infos = append(infos, clusterInfo{
			Name:        id.Name,
			URL:         id.URL,
			Description: id.Description,
			Active:      id.Name == active,
			Queryable:   id.Queryable(),
		})
	}

	if jsonOut {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  \tNAME\tURL\tDESCRIPTION")
	for _, info := range infos {
		marker := " "
		if info.Active {
			marker = "*"
		}
		url := info.URL
		if !info.Queryable {
			url = "(no search endpoint)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, info.Name, url, info.Description)
	}
	return w.Flush()
}
