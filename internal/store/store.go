package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/osse101/KudosBot_Go/internal/domain"
)

// Store is the durable mapping from Strava athlete id to linked account
// record. Reads never mutate the store; all writes go through Upsert,
// which replaces the whole record and persists synchronously. Callers
// updating individual fields must read the current record first and merge.
type Store interface {
	// GetOrDefault returns the record for athleteID, or the zero record
	// when no entry exists.
	GetOrDefault(athleteID string) domain.LinkedAccount

	// Upsert replaces the record for athleteID and persists the store.
	Upsert(athleteID string, account domain.LinkedAccount) error

	// AthleteIDByDiscordID resolves the reverse linkage. Returns
	// domain.ErrAccountNotLinked when no athlete is linked to discordID.
	AthleteIDByDiscordID(discordID string) (string, error)
}

// FileStore is a Store backed by a single JSON file, rewritten in full on
// every mutation. Safe for interleaved handler access within one process;
// running multiple processes against the same file is unsupported.
type FileStore struct {
	mu        sync.RWMutex
	path      string
	accounts  map[string]domain.LinkedAccount
	byDiscord map[string]string // discord id -> athlete id
}

// NewFileStore loads the store from path. A missing or unparsable file is
// treated as an empty store, not an error.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		accounts:  make(map[string]domain.LinkedAccount),
		byDiscord: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("Accounts file not found, starting with empty store", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	default:
		if err := json.Unmarshal(data, &s.accounts); err != nil {
			slog.Warn("Accounts file is corrupt, starting with empty store", "path", path, "error", err)
			s.accounts = make(map[string]domain.LinkedAccount)
		}
	}

	for athleteID, acct := range s.accounts {
		if acct.Linked() {
			s.byDiscord[acct.DiscordID] = athleteID
		}
	}

	return s, nil
}

// GetOrDefault returns the record for athleteID, or the zero record.
func (s *FileStore) GetOrDefault(athleteID string) domain.LinkedAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[athleteID]
}

// Upsert replaces the record for athleteID and rewrites the backing file.
func (s *FileStore) Upsert(athleteID string, account domain.LinkedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.accounts[athleteID]; prev.Linked() {
		delete(s.byDiscord, prev.DiscordID)
	}
	s.accounts[athleteID] = account
	if account.Linked() {
		s.byDiscord[account.DiscordID] = athleteID
	}

	return s.persist()
}

// AthleteIDByDiscordID resolves a Discord user to their linked athlete id.
func (s *FileStore) AthleteIDByDiscordID(discordID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	athleteID, ok := s.byDiscord[discordID]
	if !ok {
		return "", domain.ErrAccountNotLinked
	}
	return athleteID, nil
}

// persist writes the full store to a temp file and renames it into place.
// Callers must hold the write lock.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(s.accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp accounts file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close accounts file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace accounts file: %w", err)
	}
	return nil
}
