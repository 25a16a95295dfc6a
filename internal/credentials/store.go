package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spec-kit/ticket-triage/internal/triage"
)

// ErrNoCredential is returned by Load when nothing has been saved.
var ErrNoCredential = errors.New("no stored credential")

// Store persists the bearer credential between CLI invocations.
type Store interface {
	Load() (triage.Credential, error)
	Save(cred triage.Credential) error
	Clear() error
}

// MemoryStore keeps the credential for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	cred *triage.Credential
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (triage.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return triage.Credential{}, ErrNoCredential
	}
	return *s.cred, nil
}

func (s *MemoryStore) Save(cred triage.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}

// FileStore writes the credential as JSON to a user-private file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (triage.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return triage.Credential{}, ErrNoCredential
		}
		return triage.Credential{}, fmt.Errorf("read credential: %w", err)
	}
	var cred triage.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return triage.Credential{}, fmt.Errorf("decode credential %s: %w", s.path, err)
	}
	if cred.Token == "" {
		return triage.Credential{}, ErrNoCredential
	}
	return cred, nil
}

func (s *FileStore) Save(cred triage.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	raw, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}
