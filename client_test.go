package uplink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/uplink/credential"
	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/policy"
	"github.com/nimbusfs/uplink/uplinktypes"
)

// startFakeService runs a fake configuration endpoint plus an upload
// endpoint and returns client options pointing at them.
func startFakeService(t *testing.T, upload http.HandlerFunc) []uplinktypes.Option {
	t.Helper()

	uploadServer := httptest.NewServer(upload)
	t.Cleanup(uploadServer.Close)
	host := strings.TrimPrefix(uploadServer.URL, "http://")

	uc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"hosts":[{"io":{"src":{"main":["io.example.com"]}},`+
			`"up":{"src":{"main":["%s"]}}}]}`, host)
	}))
	t.Cleanup(uc.Close)

	return []uplinktypes.Option{
		WithUcHosts(uc.URL),
		WithCredential(credential.New("test-ak", "test-sk")),
		WithRequestRetries(-1),
		WithRequestRetryDelay(time.Millisecond),
		WithRecorderRootDirectory(t.TempDir()),
	}
}

func writeSource(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestNew_Defaults(t *testing.T) {
	client, err := New(WithRecorderRootDirectory(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, uplinktypes.DefaultUploadThreshold, client.cfg.UploadThreshold)
	assert.Equal(t, uplinktypes.DefaultConcurrency, client.cfg.Concurrency)
	assert.Equal(t, uplinktypes.DefaultUcURLs, client.cfg.UcURLs)
	assert.NotNil(t, client.Resolver())
	assert.NotNil(t, client.Health())
	assert.Nil(t, client.uplog)
}

func TestNew_AppliesOptions(t *testing.T) {
	client, err := New(
		WithUseHTTPS(true),
		WithUcHosts("https://uc.internal.example.com"),
		WithUploadThreshold(1<<20),
		WithUploadBlockSize(1<<21),
		WithConcurrency(8),
		WithBatchMaxOperationSize(50),
		WithRecorderRootDirectory(t.TempDir()),
	)
	require.NoError(t, err)

	assert.True(t, client.cfg.UseHTTPS)
	assert.Equal(t, []string{"https://uc.internal.example.com"}, client.cfg.UcURLs)
	assert.Equal(t, int64(1<<20), client.cfg.UploadThreshold)
	assert.Equal(t, int64(1<<21), client.cfg.UploadBlockSize)
	assert.Equal(t, 8, client.cfg.Concurrency)
	assert.Equal(t, 50, client.cfg.BatchMaxOperationSize)
}

func TestUploadFile_MintsTokenFromCredential(t *testing.T) {
	var gotToken string
	opts := startFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotToken = r.FormValue("token")
		w.Write([]byte(`{"key":"photos/cat.jpg","hash":"SomeHash"}`))
	})

	client, err := New(opts...)
	require.NoError(t, err)

	resp, err := client.UploadFile(context.Background(), "media", writeSource(t, []byte("data")),
		WithKey("photos/cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "photos/cat.jpg", resp.Key)
	assert.Equal(t, "SomeHash", resp.Hash)

	// The minted token parses back to a policy scoped to the exact object.
	parsed, err := policy.Parse(gotToken)
	require.NoError(t, err)
	assert.Equal(t, "test-ak", parsed.AccessKey())
	p, err := parsed.Policy()
	require.NoError(t, err)
	assert.Equal(t, "media:photos/cat.jpg", p.Scope)
	assert.False(t, p.Expired())
}

func TestUploadFile_UsesSuppliedToken(t *testing.T) {
	var gotToken string
	opts := startFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotToken = r.FormValue("token")
		w.Write([]byte(`{"key":"k","hash":"h"}`))
	})

	client, err := New(opts...)
	require.NoError(t, err)

	_, err = client.UploadFile(context.Background(), "media", writeSource(t, []byte("data")),
		WithToken("other-ak:sig:cGF5bG9hZA=="))
	require.NoError(t, err)
	assert.Equal(t, "other-ak:sig:cGF5bG9hZA==", gotToken)
}

func TestUploadFile_ResumablePathThroughClient(t *testing.T) {
	var sawMkfile bool
	opts := startFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/mkblk/"):
			w.Write([]byte(`{"ctx":"c1","offset":0}`))
		case strings.HasPrefix(r.URL.Path, "/mkfile/"):
			sawMkfile = true
			w.Write([]byte(`{"key":"big.bin","hash":"BigHash"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	opts = append(opts, WithUploadThreshold(4), WithUploadBlockSize(8))

	client, err := New(opts...)
	require.NoError(t, err)

	resp, err := client.UploadFile(context.Background(), "media",
		writeSource(t, []byte("0123456789abcdef")), WithKey("big.bin"))
	require.NoError(t, err)
	assert.Equal(t, "BigHash", resp.Hash)
	assert.True(t, sawMkfile)
}

func TestUploadReader(t *testing.T) {
	var gotFile, gotName string
	opts := startFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		gotFile = string(body)
		gotName = header.Filename
		w.Write([]byte(`{"key":"stream.bin","hash":"h"}`))
	})

	client, err := New(opts...)
	require.NoError(t, err)

	content := "piped content"
	resp, err := client.UploadReader(context.Background(), "media",
		strings.NewReader(content), int64(len(content)),
		WithKey("stream.bin"), WithFileName("stream.bin"))
	require.NoError(t, err)
	assert.Equal(t, "stream.bin", resp.Key)
	assert.Equal(t, content, gotFile)
	assert.Equal(t, "stream.bin", gotName)
}

func TestUploadFile_NoCredential(t *testing.T) {
	t.Setenv(credential.EnvAccessKey, "")
	t.Setenv(credential.EnvSecretKey, "")
	credential.ResetGlobal()

	client, err := New(WithRecorderRootDirectory(t.TempDir()))
	require.NoError(t, err)

	_, err = client.UploadFile(context.Background(), "media", writeSource(t, []byte("data")))
	assert.ErrorIs(t, err, credential.ErrNoCredential)
}

func TestUploadFile_InvalidSuppliedToken(t *testing.T) {
	client, err := New(WithRecorderRootDirectory(t.TempDir()))
	require.NoError(t, err)

	_, err = client.UploadFile(context.Background(), "media", writeSource(t, []byte("data")),
		WithToken("not-a-token"))
	assert.ErrorIs(t, err, errors.ErrInvalidToken)
}

func TestClient_ClosePersistsHealth(t *testing.T) {
	persistPath := filepath.Join(t.TempDir(), "health.json")

	client, err := New(
		WithRecorderRootDirectory(t.TempDir()),
		WithPersistFile(persistPath),
	)
	require.NoError(t, err)

	require.NoError(t, client.Health().Freeze("http://down.example.com"))
	require.NoError(t, client.Close())

	raw, err := os.ReadFile(persistPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "down.example.com")
}

func TestClient_Uplog(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	uplogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		lines = append(lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
		mu.Unlock()
	}))
	defer uplogServer.Close()

	opts := startFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"key":"k","hash":"h"}`))
	})
	opts = append(opts,
		WithUplogEnabled(true),
		WithUplogServerURL(uplogServer.URL),
		WithUplogSizeThreshold(1),
	)

	client, err := New(opts...)
	require.NoError(t, err)
	require.NotNil(t, client.uplog)

	_, err = client.UploadFile(context.Background(), "media", writeSource(t, []byte("data")))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], `"up_type":"form"`)
	assert.Contains(t, lines[0], `"file_size":4`)
}
