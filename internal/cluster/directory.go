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

// Package cluster provides the static cluster directory: a read-only
// mapping of cluster short names to dashboard endpoints.
//
// The directory is loaded once and never mutated. Which cluster is
// currently active is runtime state owned by the credential store, not
// by the directory.
package cluster

import (
	_ "embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tombee/spyglass/pkg/errors"
)

//go:embed registry.yaml
var embeddedRegistry []byte

// Identity describes one cluster in the registry. Immutable after load.
type Identity struct {
	// Name is the cluster short name (e.g. "prod-aws-eu-cluster").
	Name string `yaml:"name" json:"name"`

	// URL is the OpenSearch Dashboards endpoint. Empty means the cluster
	// has no OpenSearch deployment and cannot be queried.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Description is the human label.
	Description string `yaml:"description" json:"description"`
}

// Queryable reports whether the cluster has a search endpoint.
func (id Identity) Queryable() bool {
	return id.URL != ""
}

// Directory is the immutable cluster registry.
type Directory struct {
	ordered []Identity
	byName  map[string]Identity
}

type registryFile struct {
	Clusters []Identity `yaml:"clusters"`
}

// Load builds a Directory from the embedded registry, replaced entirely
// by the override file at overridePath when that file exists. A missing
// override is not an error; a malformed one is.
func Load(overridePath string) (*Directory, error) {
	data := embeddedRegistry

	if overridePath != "" {
		if contents, err := os.ReadFile(overridePath); err == nil {
			data = contents
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "reading cluster registry override %s", overridePath)
		}
	}

	return parse(data)
}

func parse(data []byte) (*Directory, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing cluster registry")
	}
	if len(file.Clusters) == 0 {
		return nil, errors.New("cluster registry is empty")
	}

	dir := &Directory{
		ordered: make([]Identity, 0, len(file.Clusters)),
		byName:  make(map[string]Identity, len(file.Clusters)),
	}
	for _, id := range file.Clusters {
		if id.Name == "" {
			return nil, errors.New("cluster registry entry without a name")
		}
		id.URL = strings.TrimRight(id.URL, "/")
		dir.ordered = append(dir.ordered, id)
		dir.byName[id.Name] = id
	}
	return dir, nil
}

// Lookup returns the identity for a cluster short name.
func (d *Directory) Lookup(name string) (Identity, error) {
	id, ok := d.byName[name]
	if !ok {
		return Identity{}, &errors.NotFoundError{Resource: "cluster", ID: name}
	}
	return id, nil
}

// List returns all registered clusters in declaration order.
func (d *Directory) List() []Identity {
	out := make([]Identity, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// QueryableNames returns the short names of clusters that have a search
// endpoint, in declaration order. Used in error messages.
func (d *Directory) QueryableNames() []string {
	names := make([]string, 0, len(d.ordered))
	for _, id := range d.ordered {
		if id.Queryable() {
			names = append(names, id.Name)
		}
	}
	return names
}
