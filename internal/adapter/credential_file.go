package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CredentialFile keeps the bearer credential in a single user-private file.
type CredentialFile struct {
	Path string
}

func NewCredentialFile(path string) *CredentialFile {
	return &CredentialFile{Path: path}
}

func (f *CredentialFile) Load(_ context.Context) (string, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (f *CredentialFile) Save(_ context.Context, credential string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	return os.WriteFile(f.Path, []byte(credential+"\n"), 0o600)
}

func (f *CredentialFile) Clear(_ context.Context) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.Path, err)
	}
	return nil
}
