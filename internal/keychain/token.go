// Package keychain stores the server auth token in the operating system
// keyring, falling back to a mode-0600 file when no keyring is available
// (headless hosts, containers).
package keychain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	service = "cockpit"
	account = "server-token"
)

// TokenStore reads and writes the auth token.
type TokenStore struct {
	fallbackPath string
}

func NewTokenStore(fallbackPath string) *TokenStore {
	return &TokenStore{fallbackPath: fallbackPath}
}

// Load returns the stored token, or "" when none is stored.
func (s *TokenStore) Load() (string, error) {
	token, err := keyring.Get(service, account)
	if err == nil {
		return strings.TrimSpace(token), nil
	}
	if !errors.Is(err, keyring.ErrNotFound) && s.fallbackPath == "" {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return s.loadFile()
}

// Save writes the token to the keyring, or to the fallback file when the
// keyring is unusable.
func (s *TokenStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := keyring.Set(service, account, token); err == nil {
		return nil
	}
	return s.saveFile(token)
}

// Delete removes the token from both stores.
func (s *TokenStore) Delete() error {
	if err := keyring.Delete(service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		if s.fallbackPath == "" {
			return err
		}
	}
	if s.fallbackPath == "" {
		return nil
	}
	if err := os.Remove(s.fallbackPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *TokenStore) loadFile() (string, error) {
	if s.fallbackPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *TokenStore) saveFile(token string) error {
	if s.fallbackPath == "" {
		return fmt.Errorf("no keyring and no fallback path")
	}
	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0o755); err != nil {
		return err
	}
	tmp := s.fallbackPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.fallbackPath)
}
