package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type tokenFile struct {
	path string
}

func defaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voicemesh", "token"), nil
}

// Load returns "" when no token has been saved.
func (t tokenFile) Load() (string, error) {
	b, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (t tokenFile) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(t.path, []byte(token+"\n"), 0o600)
}

func (t tokenFile) Remove() error {
	err := os.Remove(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
