package hook

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uperrors "github.com/nimbusfs/uplink/errors"
)

func newTestRequest(t *testing.T) *Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://up.example.com/", nil)
	require.NoError(t, err)
	return NewRequest(req)
}

// recordingHook notes the order its methods run in.
type recordingHook struct {
	name  string
	order *[]string
}

func (h recordingHook) Before(*Request) error {
	*h.order = append(*h.order, h.name+".before")
	return nil
}

func (h recordingHook) After(*Request, *http.Response) error {
	*h.order = append(*h.order, h.name+".after")
	return nil
}

func TestChain_Ordering(t *testing.T) {
	var order []string
	chain := &Chain{}

	chain.InsertBack(recordingHook{name: "back-1", order: &order})
	chain.InsertBack(recordingHook{name: "back-2", order: &order})
	chain.InsertFront(recordingHook{name: "front-1", order: &order})
	chain.InsertFront(recordingHook{name: "front-2", order: &order})
	require.Equal(t, 4, chain.Len())

	require.NoError(t, chain.RunBefore(newTestRequest(t)))
	assert.Equal(t, []string{"front-2.before", "front-1.before", "back-1.before", "back-2.before"}, order)

	order = order[:0]
	require.NoError(t, chain.RunAfter(newTestRequest(t), httptest.NewRecorder().Result()))
	assert.Equal(t, []string{"front-2.after", "front-1.after", "back-1.after", "back-2.after"}, order)
}

func TestChain_BeforeErrorCancels(t *testing.T) {
	cause := errors.New("not today")
	var reached bool
	chain := &Chain{}
	chain.InsertBack(BeforeFunc(func(*Request) error { return cause }))
	chain.InsertBack(BeforeFunc(func(*Request) error {
		reached = true
		return nil
	}))

	err := chain.RunBefore(newTestRequest(t))
	assert.True(t, uperrors.IsUserCanceled(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, reached)
}

func TestChain_DataSharedAcrossHooks(t *testing.T) {
	chain := &Chain{}
	chain.InsertBack(BeforeFunc(func(req *Request) error {
		req.SetData("started", "yes")
		return nil
	}))

	var got any
	chain.InsertBack(AfterFunc(func(req *Request, _ *http.Response) error {
		got, _ = req.Data("started")
		return nil
	}))

	req := newTestRequest(t)
	require.NoError(t, chain.RunBefore(req))
	require.NoError(t, chain.RunAfter(req, httptest.NewRecorder().Result()))
	assert.Equal(t, "yes", got)
}

func TestChain_AfterMayReplaceBody(t *testing.T) {
	chain := &Chain{}
	chain.InsertBack(AfterFunc(func(_ *Request, resp *http.Response) error {
		resp.Body.Close()
		resp.Body = io.NopCloser(strings.NewReader(`{"patched":true}`))
		return nil
	}))

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"patched":false}`)),
	}
	require.NoError(t, chain.RunAfter(newTestRequest(t), resp))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"patched":true}`, string(body))
}

func TestChain_AfterErrorCancels(t *testing.T) {
	chain := &Chain{}
	chain.InsertBack(AfterFunc(func(*Request, *http.Response) error {
		return errors.New("reject response")
	}))

	err := chain.RunAfter(newTestRequest(t), httptest.NewRecorder().Result())
	assert.True(t, uperrors.IsUserCanceled(err))
}

func TestChain_FuncAdaptersIgnoreOtherPhase(t *testing.T) {
	chain := &Chain{}
	chain.InsertBack(BeforeFunc(func(*Request) error { return errors.New("before only") }))
	chain.InsertBack(AfterFunc(func(*Request, *http.Response) error { return errors.New("after only") }))

	// A BeforeFunc never fails the after phase, and vice versa.
	assert.Error(t, chain.RunBefore(newTestRequest(t)))
	chain = &Chain{}
	chain.InsertBack(BeforeFunc(func(*Request) error { return errors.New("before only") }))
	assert.NoError(t, chain.RunAfter(newTestRequest(t), httptest.NewRecorder().Result()))
}

func TestChain_EmptyChainIsNoop(t *testing.T) {
	chain := &Chain{}
	req := newTestRequest(t)

	assert.NoError(t, chain.RunBefore(req))
	assert.NoError(t, chain.RunAfter(req, httptest.NewRecorder().Result()))
}
