// Package transport sends the uploader's HTTP requests.
//
// It layers per-endpoint retries, hook dispatch, and error classification on
// top of a retrying HTTP client. Failures come back as one of three shapes:
// a TransportError for connection problems and 5xx responses, a StatusError
// for 4xx rejections, or a hook cancellation. Callers decide failover from
// the shape alone.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/hook"
)

// Version is reported in the User-Agent header.
const Version = "1.0.0"

const maxErrorBodySize = 4 << 10

// Config controls a transport Client.
type Config struct {
	// Timeout bounds a single request attempt, response body included.
	Timeout time.Duration

	// Retries is the number of additional attempts against the same
	// endpoint after a retryable failure.
	Retries int

	// RetryDelay is the base wait between attempts.
	RetryDelay time.Duration

	// AppendedUserAgent is extra detail appended to the default User-Agent.
	AppendedUserAgent string

	// Hooks is the handler chain dispatched around every request.
	Hooks *hook.Chain

	// Logger receives request-level debug output.
	Logger log.Logger
}

// Client is a hook-aware HTTP client with per-endpoint retries.
type Client struct {
	inner     *retryablehttp.Client
	hooks     *hook.Chain
	userAgent string
	logger    log.Logger
}

// New creates a Client from cfg. Zero-value fields fall back to sane
// defaults: 10 minute timeout, 3 retries, 500 ms base delay.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	// A negative retry count disables per-endpoint retries entirely.
	if cfg.Retries == 0 {
		cfg.Retries = 3
	} else if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Hooks == nil {
		cfg.Hooks = &hook.Chain{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger()
	}

	inner := retryablehttp.NewClient()
	inner.HTTPClient.Timeout = cfg.Timeout
	inner.RetryMax = cfg.Retries
	inner.RetryWaitMin = cfg.RetryDelay
	inner.RetryWaitMax = cfg.RetryDelay * 8
	inner.Logger = nil

	userAgent := fmt.Sprintf("uplink/%s", Version)
	if cfg.AppendedUserAgent != "" {
		userAgent += " " + cfg.AppendedUserAgent
	}

	return &Client{
		inner:     inner,
		hooks:     cfg.Hooks,
		userAgent: userAgent,
		logger:    cfg.Logger,
	}
}

// Do sends req and classifies the outcome. On success the caller owns the
// response body. Connection failures and 5xx responses come back as a
// TransportError, 4xx responses as a StatusError, and hook rejections as a
// user cancellation.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", c.userAgent)

	hookReq := hook.NewRequest(req)
	if err := c.hooks.RunBefore(hookReq); err != nil {
		return nil, err
	}

	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, errors.NewURLError("request", req.URL.String(), err)
	}

	c.logger.Debugf("%s %s", req.Method, req.URL)
	resp, err := c.inner.Do(rreq)
	if err != nil {
		return nil, &errors.TransportError{URL: req.URL.String(), Err: err}
	}

	if err := c.hooks.RunAfter(hookReq, resp); err != nil {
		drain(resp)
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		drain(resp)
		return nil, &errors.TransportError{URL: req.URL.String(), StatusCode: resp.StatusCode}
	case resp.StatusCode >= 300:
		message := serviceError(resp)
		drain(resp)
		return nil, &errors.StatusError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}
	return resp, nil
}

// PostJSON sends body to url with the given Authorization value and decodes
// a JSON response into out. A nil out discards the response body.
func (c *Client) PostJSON(ctx context.Context, url, contentType, authorization string, body []byte, out any) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.NewURLError("request", url, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return c.roundTripJSON(ctx, req, out)
}

// GetJSON fetches url and decodes a JSON response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.NewURLError("request", url, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.roundTripJSON(ctx, req, out)
}

func (c *Client) roundTripJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidResponse, err)
	}
	return nil
}

// serviceError extracts the {"error": "..."} message the service attaches to
// rejections, or a body prefix when the payload is not in that shape.
func serviceError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return string(bytes.TrimSpace(body))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	resp.Body.Close()
}
