package carbonapi

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenSource supplies the bearer token for each request. An empty token
// means the request is sent without an Authorization header.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// FileTokenStore persists the token in a single file, the on-disk
// counterpart of a browser's local storage.
type FileTokenStore struct {
	Path string
}

// Token reads the stored token. A missing file yields "" and no error.
func (s FileTokenStore) Token() (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("carbonapi.FileTokenStore.Token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Save writes token to the store, creating parent directories as needed.
// The file is readable by the owner only.
func (s FileTokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("carbonapi.FileTokenStore.Save: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("carbonapi.FileTokenStore.Save: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s FileTokenStore) Clear() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("carbonapi.FileTokenStore.Clear: %w", err)
	}
	return nil
}
