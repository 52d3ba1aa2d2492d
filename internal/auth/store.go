package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"social-publisher/internal/model"
)

// MemoryStore keeps credentials in process.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]model.Credential
}

func NewMemoryStore(creds ...model.Credential) *MemoryStore {
	s := &MemoryStore{creds: make(map[string]model.Credential, len(creds))}
	for _, c := range creds {
		s.creds[c.AccountID] = c
	}
	return s
}

func (s *MemoryStore) Load(_ context.Context, accountID string) (model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[accountID]
	if !ok {
		return model.Credential{}, fmt.Errorf("credential %q not found", accountID)
	}
	return c, nil
}

func (s *MemoryStore) Save(_ context.Context, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.AccountID] = cred
	return nil
}

// FileStore keeps credentials as a JSON array in a single file and rewrites it on every Save, so refreshed
// tokens survive restarts.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context, accountID string) (model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, err := s.read()
	if err != nil {
		return model.Credential{}, err
	}
	for _, c := range creds {
		if c.AccountID == accountID {
			return c, nil
		}
	}
	return model.Credential{}, fmt.Errorf("credential %q not found in %s", accountID, s.path)
}

// All returns every stored credential in file order.
func (s *FileStore) All() ([]model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Save(_ context.Context, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range creds {
		if creds[i].AccountID == cred.AccountID {
			creds[i] = cred
			replaced = true
		}
	}
	if !replaced {
		creds = append(creds, cred)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) read() ([]model.Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds []model.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return creds, nil
}
