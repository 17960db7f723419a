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

package credential

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used for keyring entries.
	keyringService = "spyglass"

	// keyringProbeKey is queried once to detect locked or unavailable
	// keyring services.
	keyringProbeKey = "__spyglass_availability_probe__"
)

// ErrKeyringUnavailable indicates the OS keyring service cannot be used.
var ErrKeyringUnavailable = errors.New("keyring unavailable")

// Keyring is the narrow OS-keyring surface the store depends on.
// Supported platforms: macOS Keychain, Linux Secret Service, Windows
// Credential Manager.
type Keyring interface {
	Get(cluster string) (string, error)
	Set(cluster string, cookieHeader string) error
}

// SystemKeyring stores cookie headers in the OS keyring, one entry per
// cluster short name.
type SystemKeyring struct {
	available bool
}

// NewSystemKeyring creates a keyring source, probing availability once
// so locked keychains are detected early. Returns nil when the keyring
// cannot be used, so callers can pass the result straight to StoreConfig.
func NewSystemKeyring() *SystemKeyring {
	_, err := keyring.Get(keyringService, keyringProbeKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return &SystemKeyring{available: true}
}

// Get retrieves the cookie header for a cluster.
func (k *SystemKeyring) Get(cluster string) (string, error) {
	if !k.available {
		return "", ErrKeyringUnavailable
	}
	value, err := keyring.Get(keyringService, cluster)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("keyring read: %w", err)
	}
	return value, nil
}

// Set stores the cookie header for a cluster.
func (k *SystemKeyring) Set(cluster string, cookieHeader string) error {
	if !k.available {
		return ErrKeyringUnavailable
	}
	if err := keyring.Set(keyringService, cluster, cookieHeader); err != nil {
		return fmt.Errorf("keyring write: %w", err)
	}
	return nil
}
