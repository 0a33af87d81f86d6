package keychain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestTokenRoundTripMockKeyring(t *testing.T) {
	keyring.MockInit()
	s := NewTokenStore(filepath.Join(t.TempDir(), "token"))
	if err := s.Save("tok-123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load()
	if err != nil || got != "tok-123" {
		t.Fatalf("load: got (%q, %v)", got, err)
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.Load()
	if err != nil || got != "" {
		t.Fatalf("after delete: got (%q, %v)", got, err)
	}
}

func TestTokenFileFallback(t *testing.T) {
	keyring.MockInitWithError(keyring.ErrUnsupportedPlatform)
	path := filepath.Join(t.TempDir(), "token")
	s := NewTokenStore(path)
	if err := s.Save("fallback-tok"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("token file must be 0600, got %v", info.Mode().Perm())
	}
	got, err := s.Load()
	if err != nil || got != "fallback-tok" {
		t.Fatalf("load: got (%q, %v)", got, err)
	}
}

func TestEmptyTokenRejected(t *testing.T) {
	keyring.MockInit()
	s := NewTokenStore(filepath.Join(t.TempDir(), "token"))
	if err := s.Save("   "); err == nil {
		t.Fatalf("blank token must be rejected")
	}
}
