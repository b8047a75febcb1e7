package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/formats"
	"github.com/ajitpratap0/ingest/pkg/logger"
)

// LocalStore keeps objects as files: bucket/key lives at root/bucket/key.
type LocalStore struct {
	root string
	log  *zap.Logger
}

// NewLocalStore returns a store rooted at root
func NewLocalStore(root string, log *zap.Logger) *LocalStore {
	return &LocalStore{root: root, log: logger.OrNop(log).Named("local")}
}

func (s *LocalStore) path(bucket, key string) (string, error) {
	p := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrorTypeConfig, "object %s/%s escapes the storage root", bucket, key)
	}
	return p, nil
}

// Fetch reads the file behind bucket/key.
func (s *LocalStore) Fetch(_ context.Context, bucket, key string) ([]byte, error) {
	p, err := s.path(bucket, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(err, bucket, key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read object").
			WithDetail("path", p)
	}

	s.log.Debug("object fetched", zap.String("path", p), zap.Int("bytes", len(data)))
	return data, nil
}

// Upload copies the file at path to bucket/key, creating directories as needed.
func (s *LocalStore) Upload(_ context.Context, bucket, key, path string) error {
	dst, err := s.path(bucket, key)
	if err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to open artifact").
			WithDetail("path", path)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create object directory").
			WithDetail("path", dst)
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create object").
			WithDetail("path", dst)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to copy artifact").
			WithDetail("path", dst)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to close object").
			WithDetail("path", dst)
	}

	s.log.Debug("artifact uploaded", zap.String("path", dst))
	return nil
}

// contentType guesses the MIME type of an artifact from its extension.
func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range formats.OutputFormats() {
		if f.Extension() == ext {
			return f.ContentType()
		}
	}
	return "application/octet-stream"
}
