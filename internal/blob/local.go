package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps blobs on disk under basePath; refs are relative paths.
type LocalStorage struct {
	basePath  string
	publicURL string
}

func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{basePath: basePath, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// Root is the directory blobs are written to.
func (s *LocalStorage) Root() string { return s.basePath }

func (s *LocalStorage) path(ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	if clean == "/" {
		return "", fmt.Errorf("invalid blob ref %q", ref)
	}
	return filepath.Join(s.basePath, clean), nil
}

func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	fullPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	logg.Debug("blob", "File stored at "+fullPath)
	return key, nil
}

func (s *LocalStorage) Delete(_ context.Context, ref string) error {
	fullPath, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *LocalStorage) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return s.publicURL + "/" + ref
}

// PublicURL is the prefix URL() puts in front of refs.
func (s *LocalStorage) PublicURL() string { return s.publicURL }
