package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/hook"
)

func newTestClient(hooks *hook.Chain) *Client {
	return New(Config{
		Timeout:    5 * time.Second,
		Retries:    -1,
		RetryDelay: time.Millisecond,
		Hooks:      hooks,
	})
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "uplink/")
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	var out struct {
		Value string `json:"value"`
	}
	err := newTestClient(nil).GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "payload", string(body))
		assert.Equal(t, "UpToken token-string", r.Header.Get("Authorization"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"ctx":"abc","offset":7}`))
	}))
	defer server.Close()

	var out struct {
		Ctx    string `json:"ctx"`
		Offset int64  `json:"offset"`
	}
	err := newTestClient(nil).PostJSON(context.Background(), server.URL,
		"application/octet-stream", "UpToken token-string", []byte("payload"), &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Ctx)
	assert.Equal(t, int64(7), out.Offset)
}

func TestClient_ServerErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := newTestClient(nil).GetJSON(context.Background(), server.URL, nil)
	assert.True(t, uperrors.IsTransport(err))
}

func TestClient_ConnectionErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	err := newTestClient(nil).GetJSON(context.Background(), server.URL, nil)
	assert.True(t, uperrors.IsTransport(err))
}

func TestClient_ClientErrorIsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer server.Close()

	err := newTestClient(nil).GetJSON(context.Background(), server.URL, nil)

	code, ok := uperrors.IsStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, err.Error(), "bad token")
	assert.False(t, uperrors.IsTransport(err))
}

func TestClient_RetriesSameEndpoint(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(Config{
		Timeout:    5 * time.Second,
		Retries:    2,
		RetryDelay: time.Millisecond,
	})
	err := client.GetJSON(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_BeforeHookCancels(t *testing.T) {
	var served atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		served.Store(true)
	}))
	defer server.Close()

	hooks := &hook.Chain{}
	hooks.InsertBack(hook.BeforeFunc(func(*hook.Request) error {
		return errors.New("vetoed")
	}))

	err := newTestClient(hooks).GetJSON(context.Background(), server.URL, nil)
	assert.True(t, uperrors.IsUserCanceled(err))
	assert.False(t, uperrors.IsTransport(err))
	assert.False(t, served.Load())
}

func TestClient_AfterHookSeesAndRewritesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":"original"}`))
	}))
	defer server.Close()

	hooks := &hook.Chain{}
	hooks.InsertBack(hook.BeforeFunc(func(req *hook.Request) error {
		req.SetData("tag", "t-1")
		return nil
	}))
	hooks.InsertBack(hook.AfterFunc(func(req *hook.Request, resp *http.Response) error {
		tag, ok := req.Data("tag")
		assert.True(t, ok)
		assert.Equal(t, "t-1", tag)

		resp.Body.Close()
		resp.Body = io.NopCloser(strings.NewReader(`{"value":"rewritten"}`))
		return nil
	}))

	var out struct {
		Value string `json:"value"`
	}
	err := newTestClient(hooks).GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", out.Value)
}

func TestClient_MalformedJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	var out map[string]any
	err := newTestClient(nil).GetJSON(context.Background(), server.URL, &out)
	assert.ErrorIs(t, err, uperrors.ErrInvalidResponse)
	assert.False(t, uperrors.IsTransport(err))
}
