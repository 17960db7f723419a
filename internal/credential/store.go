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
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tombee/spyglass/pkg/errors"
)

// Store holds the current credential bundle per cluster.
//
// Resolution order on a cache miss: persisted credentials file, then the
// OS keyring, then the SPYGLASS_COOKIE static fallback. Replace persists
// to disk first and only then swaps the in-memory copy, so a crash
// mid-persist never leaves the cache ahead of durable state.
//
// Staleness is event-driven: a bundle stays valid until the executor
// reports an authentication denial. There is no clock-based expiry.
type Store struct {
	path    string
	keyring Keyring
	logger  *slog.Logger

	// fallbackCookie/fallbackURL come from the environment and form the
	// lowest-priority entry of the resolution chain.
	fallbackCookie string
	fallbackURL    string

	mu      sync.RWMutex
	bundles map[string]Bundle
	stale   map[string]bool
	active  string
}

// StoreConfig configures a credential store.
type StoreConfig struct {
	// Path is the persisted credential record location (cookies.json).
	Path string

	// Keyring is the optional OS keyring source. Nil disables it.
	Keyring Keyring

	// FallbackCookie is the static fallback cookie header value.
	FallbackCookie string

	// FallbackURL is the endpoint used with the static fallback.
	FallbackURL string

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// persistedFile is the on-disk record. One record per cluster plus the
// active-cluster pointer.
type persistedFile struct {
	Active   string                     `json:"active,omitempty"`
	Clusters map[string]persistedBundle `json:"clusters"`
}

type persistedBundle struct {
	Cookie    string    `json:"cookie"`
	URL       string    `json:"url"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source,omitempty"`
}

// NewStore creates a credential store and loads the persisted record.
// A missing or corrupt record is treated as "no current bundle".
func NewStore(cfg StoreConfig) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		path:           cfg.Path,
		keyring:        cfg.Keyring,
		logger:         logger,
		fallbackCookie: cfg.FallbackCookie,
		fallbackURL:    cfg.FallbackURL,
		bundles:        make(map[string]Bundle),
		stale:          make(map[string]bool),
	}
	s.Reload()
	return s
}

// Get returns the current bundle for a cluster, walking the resolution
// chain on a cache miss. Returns NotFoundError when no source has one.
func (s *Store) Get(ctx context.Context, cluster string) (Bundle, error) {
	s.mu.RLock()
	bundle, ok := s.bundles[cluster]
	s.mu.RUnlock()
	if ok && !bundle.Empty() {
		return bundle, nil
	}

	if s.keyring != nil {
		if header, err := s.keyring.Get(cluster); err == nil && header != "" {
			bundle := Bundle{
				Tokens:  ParseCookieHeader(header),
				Cluster: cluster,
				Source:  SourceManual,
			}
			s.mu.Lock()
			s.bundles[cluster] = bundle
			s.mu.Unlock()
			return bundle, nil
		}
	}

	if s.fallbackCookie != "" {
		return Bundle{
			Tokens:  ParseCookieHeader(s.fallbackCookie),
			Cluster: cluster,
			URL:     s.fallbackURL,
			Source:  SourceStaticFallback,
		}, nil
	}

	return Bundle{}, &errors.NotFoundError{Resource: "credential bundle", ID: cluster}
}

// Replace installs a new bundle for its cluster: persist first, then
// swap the cached copy. The first bundle ever installed also becomes the
// active cluster.
func (s *Store) Replace(ctx context.Context, bundle Bundle) error {
	if bundle.Cluster == "" {
		return errors.New("bundle has no cluster identity")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked(bundle, ""); err != nil {
		return errors.Wrap(err, "persisting credential bundle")
	}

	s.bundles[bundle.Cluster] = bundle
	delete(s.stale, bundle.Cluster)
	if s.active == "" {
		s.active = bundle.Cluster
	}

	if s.keyring != nil {
		// Keyring write is best-effort; the file is the durable record.
		if err := s.keyring.Set(bundle.Cluster, bundle.CookieHeader()); err != nil {
			s.logger.Debug("keyring write failed", "cluster", bundle.Cluster, "error", err)
		}
	}

	s.logger.Info("credential bundle replaced",
		slog.String("cluster", bundle.Cluster),
		slog.String("source", string(bundle.Source)))
	return nil
}

// SetActive persists the active-cluster pointer.
func (s *Store) SetActive(ctx context.Context, cluster string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked(Bundle{}, cluster); err != nil {
		return errors.Wrap(err, "persisting active cluster")
	}
	s.active = cluster
	return nil
}

// Active returns the active cluster name and when its bundle was acquired.
func (s *Store) Active() (cluster string, url string, acquiredAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cluster = s.active
	if bundle, ok := s.bundles[cluster]; ok {
		url = bundle.URL
		acquiredAt = bundle.AcquiredAt
	}
	if url == "" {
		url = s.fallbackURL
	}
	return cluster, url, acquiredAt
}

// MarkStale records that an outbound call observed an authentication
// denial for the cluster's bundle. The bundle stays readable until the
// orchestrator replaces it.
func (s *Store) MarkStale(cluster string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale[cluster] = true
}

// Stale reports whether the cluster's bundle has been marked stale.
func (s *Store) Stale(cluster string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale[cluster]
}

// Reload re-reads the persisted record, replacing the cached bundles.
// Called at startup and by the file watcher when the record is rewritten
// externally (e.g. by `spyglass login` in another process).
func (s *Store) Reload() {
	file, err := s.read()
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("credential record unreadable, treating as absent", "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bundles = make(map[string]Bundle, len(file.Clusters))
	for name, rec := range file.Clusters {
		s.bundles[name] = Bundle{
			Tokens:     ParseCookieHeader(rec.Cookie),
			Cluster:    name,
			URL:        rec.URL,
			AcquiredAt: rec.UpdatedAt,
			Source:     Source(rec.Source),
		}
		delete(s.stale, name)
	}
	if file.Active != "" {
		s.active = file.Active
	}
}

// read loads and parses the persisted record.
func (s *Store) read() (*persistedFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var file persistedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parsing credential record")
	}
	return &file, nil
}

// persistLocked writes the record atomically (temp file + rename).
// Either bundle is non-empty (install/replace) or active is set.
// Callers hold s.mu.
func (s *Store) persistLocked(bundle Bundle, active string) error {
	file, err := s.read()
	if err != nil {
		file = &persistedFile{}
	}
	if file.Clusters == nil {
		file.Clusters = make(map[string]persistedBundle)
	}

	if bundle.Cluster != "" {
		file.Clusters[bundle.Cluster] = persistedBundle{
			Cookie:    bundle.CookieHeader(),
			URL:       bundle.URL,
			UpdatedAt: bundle.AcquiredAt,
			Source:    string(bundle.Source),
		}
		if file.Active == "" {
			file.Active = bundle.Cluster
		}
	}
	if active != "" {
		file.Active = active
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Path returns the persisted record location.
func (s *Store) Path() string {
	return s.path
}
