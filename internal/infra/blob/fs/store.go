package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"bloodbank-ops/internal/infra/blob"
	"bloodbank-ops/internal/pkg/errs"
)

// Store maps keys to files under root. Writes go to a temp file that is
// renamed into place, so readers never see a partial report.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if root == "" {
		root = "./reports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create blob root %s", root)
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() blob.Driver { return blob.DriverFilesystem }

func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errs.Markf(errs.ErrValidation, "empty blob key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", errs.Markf(errs.ErrValidation, "invalid blob key %q", key)
	}
	return filepath.Clean(filepath.FromSlash(key)), nil
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, contentType string) (blob.Info, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return blob.Info{}, err
	}
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return blob.Info{}, errs.Wrapf(err, "create directory for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return blob.Info{}, errs.Wrapf(err, "create temp file for %s", key)
	}
	size, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(tmp.Name())
		return blob.Info{}, errs.Wrapf(copyErr, "write %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return blob.Info{}, errs.Wrapf(err, "replace %s", key)
	}

	st, err := os.Stat(path)
	if err != nil {
		return blob.Info{}, errs.Wrapf(err, "stat %s", key)
	}
	return blob.Info{Key: key, Size: size, ContentType: contentType, LastModified: st.ModTime().UTC()}, nil
}

func (s *Store) Get(_ context.Context, key string) (blob.Info, io.ReadCloser, error) {
	rel, err := sanitizeKey(key)
	if err != nil {
		return blob.Info{}, nil, err
	}
	f, err := os.Open(filepath.Join(s.root, rel))
	if err != nil {
		if errs.Is(err, os.ErrNotExist) {
			return blob.Info{}, nil, errs.Wrapf(blob.ErrNotFound, "get %s", key)
		}
		return blob.Info{}, nil, errs.Wrapf(err, "open %s", key)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return blob.Info{}, nil, errs.Wrapf(err, "stat %s", key)
	}
	return blob.Info{Key: key, Size: st.Size(), LastModified: st.ModTime().UTC()}, f, nil
}
