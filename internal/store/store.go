// Package store is the durable credential pool: one JSON file per account
// under a single directory, mirrored by an in-memory index.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultModels is the aggregate fallback when no account reports any model.
var DefaultModels = []string{
	"gemini-2.0-flash-exp", "gemini-2.5-flash", "gemini-exp-1206",
	"gemini-3-pro-high", "gemini-3-pro-low", "gemini-3-flash",
	"claude-sonnet-4.5", "claude-sonnet-4.5-thinking", "claude-opus-4.5-thinking",
	"gpt-oss-120b",
}

// ErrNotFound is returned when an account id has no record.
var ErrNotFound = fmt.Errorf("account not found")

// Store owns the account index and its backing files. All access funnels
// through its lock; the lock is held for in-memory mutation plus the
// synchronous file write, never across a network call.
type Store struct {
	dir string

	mu       sync.RWMutex
	accounts map[string]Account
	models   map[string]struct{}
}

// Open creates the accounts directory if needed and loads the index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}
	s := &Store{dir: dir}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Load rebuilds the in-memory index from disk. Records that fail to parse
// are skipped, never aborting the whole load. It also recomputes the
// aggregate set of known model names across all accounts.
func (s *Store) Load() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("list accounts dir: %w", err)
	}

	accounts := make(map[string]Account, len(paths))
	models := make(map[string]struct{})
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			log.Printf("⚠️ Failed to read %s: %v", p, err)
			continue
		}
		var acc Account
		if err := json.Unmarshal(raw, &acc); err != nil {
			log.Printf("⚠️ Failed to parse %s: %v", p, err)
			continue
		}
		if acc.ID == "" || acc.Token.RefreshToken == "" {
			log.Printf("⚠️ Skipping %s: missing id or token", p)
			continue
		}
		accounts[acc.ID] = acc
		for _, m := range acc.Quota.Models {
			if m.Name != "" {
				models[m.Name] = struct{}{}
			}
		}
	}

	if len(models) == 0 {
		for _, m := range DefaultModels {
			models[m] = struct{}{}
		}
	}

	s.mu.Lock()
	s.accounts = accounts
	s.models = models
	s.mu.Unlock()

	log.Printf("📦 Loaded %d accounts and %d unique models", len(accounts), len(models))
	return nil
}

// Get returns a snapshot copy of one account.
func (s *Store) Get(id string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return acc.clone(), true
}

// List returns snapshot copies of all accounts, safe to iterate without
// the lock.
func (s *Store) List() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// IDs returns the ids of all accounts.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	return ids
}

// Put applies mutate to the account under the lock and persists that one
// record. Returns ErrNotFound for unknown ids.
func (s *Store) Put(id string, mutate func(*Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	acc = acc.clone()
	mutate(&acc)
	acc.ID = id // identity is stable for the account's lifetime
	if err := s.writeLocked(acc); err != nil {
		return err
	}
	s.accounts[id] = acc
	s.mergeModelsLocked(acc)
	return nil
}

// Insert persists a brand-new account record and adds it to the index.
func (s *Store) Insert(acc Account) error {
	if acc.ID == "" {
		return fmt.Errorf("insert: account id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(acc); err != nil {
		return err
	}
	s.accounts[acc.ID] = acc.clone()
	s.mergeModelsLocked(acc)
	return nil
}

// Delete removes the durable record and the in-memory entry. On I/O failure
// the index is left unchanged so memory never disagrees with disk.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return false, nil
	}
	path := s.pathFor(id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("delete account %s: %w", id, err)
	}
	delete(s.accounts, id)
	s.recomputeModelsLocked()
	return true, nil
}

// ModelNames returns the sorted aggregate set of model names known across
// all accounts.
func (s *Store) ModelNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.models))
	for m := range s.models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// HasModel reports whether any account advertises the model, with or
// without the "models/" prefix.
func (s *Store) HasModel(name string) bool {
	trimmed := strings.TrimPrefix(name, "models/")
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[trimmed]
	return ok
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) writeLocked(acc Account) error {
	raw, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal account %s: %w", acc.ID, err)
	}
	if err := os.WriteFile(s.pathFor(acc.ID), raw, 0o600); err != nil {
		return fmt.Errorf("write account %s: %w", acc.ID, err)
	}
	return nil
}

func (s *Store) mergeModelsLocked(acc Account) {
	for _, m := range acc.Quota.Models {
		if m.Name != "" {
			s.models[m.Name] = struct{}{}
		}
	}
}

func (s *Store) recomputeModelsLocked() {
	models := make(map[string]struct{})
	for _, acc := range s.accounts {
		for _, m := range acc.Quota.Models {
			if m.Name != "" {
				models[m.Name] = struct{}{}
			}
		}
	}
	if len(models) == 0 {
		for _, m := range DefaultModels {
			models[m] = struct{}{}
		}
	}
	s.models = models
}
