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

package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/spyglass/pkg/errors"
)

func TestLoadEmbeddedRegistry(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)

	id, err := dir.Lookup("prod-aws-eu-cluster")
	require.NoError(t, err)
	assert.Equal(t, "https://opensearch-dashboard.prod.example.com", id.URL)
	assert.True(t, id.Queryable())
}

func TestLookupUnknownCluster(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)

	_, err = dir.Lookup("nope")
	require.Error(t, err)

	var nfErr *errors.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "cluster", nfErr.Resource)
	assert.Equal(t, "nope", nfErr.ID)
}

func TestClusterWithoutEndpoint(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)

	id, err := dir.Lookup("prod-special-cluster")
	require.NoError(t, err)
	assert.False(t, id.Queryable())
	assert.NotContains(t, dir.QueryableNames(), "prod-special-cluster")
}

func TestListPreservesDeclarationOrder(t *testing.T) {
	dir, err := Load("")
	require.NoError(t, err)

	list := dir.List()
	require.NotEmpty(t, list)
	assert.Equal(t, "dev-aws-eu-cluster", list[0].Name)

	// List must hand out a copy, not the internal slice.
	list[0].Name = "mutated"
	fresh := dir.List()
	assert.Equal(t, "dev-aws-eu-cluster", fresh[0].Name)
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yaml")
	override := `clusters:
  - name: lab-cluster
    url: https://opensearch.lab.example.com/
    description: Lab Cluster
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0600))

	dir, err := Load(path)
	require.NoError(t, err)

	id, err := dir.Lookup("lab-cluster")
	require.NoError(t, err)
	assert.Equal(t, "https://opensearch.lab.example.com", id.URL, "trailing slash trimmed")

	_, err = dir.Lookup("prod-aws-eu-cluster")
	assert.Error(t, err, "override replaces the embedded registry")
}

func TestLoadMissingOverrideFallsBack(t *testing.T) {
	dir, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, dir.List())
}

func TestLoadMalformedOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clusters: [not-a-mapping"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
