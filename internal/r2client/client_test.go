package r2client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validation(t *testing.T) {
	t.Parallel()

	full := Config{Endpoint: "https://acct.r2.cloudflarestorage.com", AccessKeyID: "ak", SecretKey: "sk", BucketName: "b"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "complete", mutate: func(*Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Endpoint = "" }, wantErr: true},
		{name: "missing access key", mutate: func(c *Config) { c.AccessKeyID = "" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.SecretKey = "" }, wantErr: true},
		{name: "missing bucket", mutate: func(c *Config) { c.BucketName = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := full
			tt.mutate(&cfg)
			client, err := New(context.Background(), cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestCompressDecompress(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	original := bytes.Repeat([]byte("SQLite format 3\x00 disease rows "), 2048)
	srcPath := filepath.Join(tmpDir, "src.db")
	require.NoError(t, os.WriteFile(srcPath, original, 0o600))

	compressedPath := filepath.Join(tmpDir, "src.db.zst")
	require.NoError(t, CompressFile(srcPath, compressedPath))

	info, err := os.Stat(compressedPath)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(original)), "repetitive data should compress")

	f, err := os.Open(compressedPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	dstPath := filepath.Join(tmpDir, "restored.db")
	require.NoError(t, DecompressStream(f, dstPath))

	restored, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestCompressFile_Errors(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	err := CompressFile(filepath.Join(tmpDir, "missing.db"), filepath.Join(tmpDir, "out.zst"))
	assert.Error(t, err)
}

func TestDecompressStream_Error(t *testing.T) {
	t.Parallel()
	err := DecompressStream(strings.NewReader("not zstd data"), filepath.Join(t.TempDir(), "out.db"))
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.False(t, isNotFound(errors.New("connection reset")))
}

// fakeBucket serves path-style S3 requests for a single object.
func fakeBucket(t *testing.T, key string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bucket/"+key {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("ETag", `"abc123"`)
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			_, _ = w.Write(body)
		case http.MethodPut:
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := New(context.Background(), Config{
		Endpoint:    endpoint,
		AccessKeyID: "test",
		SecretKey:   "test",
		BucketName:  "bucket",
	})
	require.NoError(t, err)
	return client
}

func TestClient_ObjectOperations(t *testing.T) {
	t.Parallel()
	srv := fakeBucket(t, "snapshots/eyecare.db.zst", []byte("payload"))
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	etag, err := client.HeadObject(ctx, "snapshots/eyecare.db.zst")
	require.NoError(t, err)
	assert.Equal(t, "abc123", etag)

	body, etag, err := client.Download(ctx, "snapshots/eyecare.db.zst")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "abc123", etag)

	etag, err = client.Upload(ctx, "snapshots/eyecare.db.zst", bytes.NewReader([]byte("new")), "application/zstd")
	require.NoError(t, err)
	assert.Equal(t, "abc123", etag)
}

func TestClient_NotFound(t *testing.T) {
	t.Parallel()
	srv := fakeBucket(t, "present", nil)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := client.HeadObject(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = client.Download(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}
