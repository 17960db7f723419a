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

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFromEnvDefaults(t *testing.T) {
	t.Setenv("OSD_VERSION", "")
	t.Setenv("OPENSEARCH_VERIFY_SSL", "")
	t.Setenv("OPENSEARCH_URL", "")
	t.Setenv("SPYGLASS_COOKIE", "")
	t.Setenv("SPYGLASS_REQUEST_TIMEOUT_SECONDS", "")
	t.Setenv("SPYGLASS_REFRESH_TIMEOUT_SECONDS", "")

	s := SettingsFromEnv()
	assert.Equal(t, DefaultOSDVersion, s.OSDVersion)
	assert.True(t, s.VerifySSL)
	assert.Equal(t, DefaultRequestTimeout, s.RequestTimeout)
	assert.Equal(t, DefaultRefreshTimeout, s.RefreshTimeout)
	assert.Empty(t, s.FallbackURL)
}

func TestSettingsFromEnvOverrides(t *testing.T) {
	t.Setenv("OSD_VERSION", "2.11.1")
	t.Setenv("OPENSEARCH_VERIFY_SSL", "false")
	t.Setenv("OPENSEARCH_URL", "https://opensearch.example.com/")
	t.Setenv("SPYGLASS_REQUEST_TIMEOUT_SECONDS", "30")

	s := SettingsFromEnv()
	assert.Equal(t, "2.11.1", s.OSDVersion)
	assert.False(t, s.VerifySSL)
	assert.Equal(t, "https://opensearch.example.com", s.FallbackURL, "trailing slash trimmed")
	assert.Equal(t, 30*time.Second, s.RequestTimeout)
}

func TestConfigDirRespectsXDG(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "spyglass"), dir)
	assert.DirExists(t, dir)

	credPath, err := CredentialsPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cookies.json"), credPath)
}
