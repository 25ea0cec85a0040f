// Package blobsvc implements core.BlobStore on Supabase storage or the local filesystem.
package blobsvc

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
)

// LocalPrefix is the URL path the API serves local files under.
const LocalPrefix = "/uploads"

// LocalStore stores files on disk; they are served by the API under LocalPrefix.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.BlobStore = (*LocalStore)(nil)

func NewLocalStore(conf *core.Config) (*LocalStore, error) {
	dir, err := filepath.Abs(conf.Storage.LocalDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving storage dir")
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(conf.Storage.PublicBaseURL, "/")}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// localPath maps an object path to a file under s.dir, refusing to escape it.
func (s *LocalStore) localPath(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", errors.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Upload(ctx context.Context, objectPath string, r io.Reader, _ string) (string, error) {
	fp, err := s.localPath(objectPath)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating object dir")
	}

	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating object")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing object")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing object")
	}
	if err = ctx.Err(); err != nil {
		_ = os.Remove(fp)
		return "", err
	}

	objectPath = strings.TrimPrefix(path.Clean("/"+objectPath), "/")
	return s.baseURL + LocalPrefix + "/" + escapePath(objectPath), nil
}

func (s *LocalStore) Delete(_ context.Context, fileURL string) error {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return errors.Wrap(err, "parsing file url")
	}
	if !strings.HasPrefix(parsed.Path, LocalPrefix+"/") {
		return errors.Errorf("file url %q is not a local file", fileURL)
	}
	fp, err := s.localPath(strings.TrimPrefix(parsed.Path, LocalPrefix+"/"))
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}
