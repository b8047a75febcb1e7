package storage

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/ingest/pkg/errors"
	"github.com/ajitpratap0/ingest/pkg/testutil"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"s3 default chain", Config{Provider: ProviderS3}, false},
		{"s3 static keys", Config{Provider: "S3", AccessKeyID: "id", SecretAccessKey: "secret"}, false},
		{"s3 half keys", Config{Provider: ProviderS3, AccessKeyID: "id"}, true},
		{"minio", Config{Provider: ProviderMinIO, Endpoint: "http://localhost:9000"}, false},
		{"minio without endpoint", Config{Provider: "MinIO"}, true},
		{"gcs", Config{Provider: ProviderGCS}, false},
		{"local", Config{Provider: ProviderLocal, Root: "/tmp"}, false},
		{"local without root", Config{Provider: ProviderLocal}, true},
		{"unknown", Config{Provider: "ftp"}, true},
		{"empty", Config{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLocalStore(t *testing.T) {
	ctx := testutil.TestContext(t)
	root := t.TempDir()

	store, err := New(ctx, Config{Provider: ProviderLocal, Root: root}, zaptest.NewLogger(t))
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"id":"1"}]`), 0o644))

	require.NoError(t, store.Upload(ctx, "staging", "exports/2024/data.json", src))
	assert.FileExists(t, filepath.Join(root, "staging", "exports", "2024", "data.json"))

	data, err := store.Fetch(ctx, "staging", "exports/2024/data.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(data))
}

func TestLocalStoreMissingObject(t *testing.T) {
	store := NewLocalStore(t.TempDir(), zaptest.NewLogger(t))

	_, err := store.Fetch(testutil.TestContext(t), "bucket", "missing.txt")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestLocalStoreRejectsEscape(t *testing.T) {
	store := NewLocalStore(t.TempDir(), zaptest.NewLogger(t))

	_, err := store.Fetch(testutil.TestContext(t), "bucket", "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLocalStoreUploadMissingArtifact(t *testing.T) {
	store := NewLocalStore(t.TempDir(), zaptest.NewLogger(t))

	err := store.Upload(testutil.TestContext(t), "bucket", "key.json", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("out/data.json"))
	assert.Equal(t, "text/csv", contentType("out/data.CSV"))
	assert.Equal(t, "application/octet-stream", contentType("out/data.bin"))
}

func s3Server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/raw/access.txt":
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("Content-Length", "7")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("a,b\n1,2"))
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3StoreFetch(t *testing.T) {
	srv := s3Server(t)
	ctx := testutil.TestContext(t)

	store, err := New(ctx, Config{
		Provider:        ProviderMinIO,
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	data, err := store.Fetch(ctx, "raw", "access.txt")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2", string(data))

	_, err = store.Fetch(ctx, "raw", "missing.txt")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
