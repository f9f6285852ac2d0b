// Package uplink provides functional options for configuring client behavior.
// These options follow the functional options pattern for clean, composable configuration.
package uplink

import (
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/nimbusfs/uplink/credential"
	"github.com/nimbusfs/uplink/hook"
	"github.com/nimbusfs/uplink/uplinktypes"
)

// WithUseHTTPS selects the HTTPS endpoint set for every service.
// Default is plain HTTP endpoints.
func WithUseHTTPS(useHTTPS bool) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.UseHTTPS = useHTTPS
	}
}

// WithUcHosts sets the configuration service endpoints, tried in order.
func WithUcHosts(urls ...string) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if len(urls) > 0 {
			c.UcURLs = urls
		}
	}
}

// WithRsHost overrides the object metadata endpoints of every resolved
// region.
func WithRsHost(url string) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.RsURL = url
	}
}

// WithUploadThreshold sets the file size at which uploads switch from the
// single-request form path to the resumable block path. Default is 4MB.
func WithUploadThreshold(threshold int64) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if threshold > 0 {
			c.UploadThreshold = threshold
		}
	}
}

// WithUploadBlockSize sets the resumable upload block size. Default is 4MB.
func WithUploadBlockSize(blockSize int64) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if blockSize > 0 {
			c.UploadBlockSize = blockSize
		}
	}
}

// WithConcurrency sets how many batch jobs run in parallel.
// Default is 4 concurrent uploads.
func WithConcurrency(concurrency int) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithBatchMaxOperationSize caps how many jobs a single batch accepts.
// Default is 1000.
func WithBatchMaxOperationSize(size int) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if size > 0 {
			c.BatchMaxOperationSize = size
		}
	}
}

// WithTokenLifetime sets how long self-minted upload tokens stay valid.
// Default is one hour.
func WithTokenLifetime(lifetime time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if lifetime > 0 {
			c.TokenLifetime = lifetime
		}
	}
}

// WithRecorderRootDirectory sets where resumable progress records live.
// Default is a directory under the OS temp dir.
func WithRecorderRootDirectory(dir string) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.RecorderRootDir = dir
	}
}

// WithRecorderBlockLifetime sets how long recorded blocks stay resumable.
// Default matches the service-side block lifetime of seven days.
func WithRecorderBlockLifetime(lifetime time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if lifetime > 0 {
			c.RecorderBlockLifetime = lifetime
		}
	}
}

// WithRecorderAlwaysFlush syncs the progress record after every block.
func WithRecorderAlwaysFlush(alwaysFlush bool) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.RecorderAlwaysFlush = alwaysFlush
	}
}

// WithResolutionsCacheLifetime sets how long region query answers stay
// cached. Default is one hour.
func WithResolutionsCacheLifetime(lifetime time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if lifetime > 0 {
			c.ResolutionsCacheLifetime = lifetime
		}
	}
}

// WithFrozenDuration sets how long a failed endpoint stays out of rotation.
// Default is ten minutes.
func WithFrozenDuration(d time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if d > 0 {
			c.FrozenDuration = d
		}
	}
}

// WithPersistFile persists endpoint health knowledge to path, surviving
// process restarts.
func WithPersistFile(path string) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.PersistFile = path
	}
}

// WithAutoPersistInterval bounds how often endpoint health is written back
// opportunistically. Default is thirty minutes.
func WithAutoPersistInterval(interval time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if interval > 0 {
			c.AutoPersistInterval = interval
		}
	}
}

// WithAutoPersistDisabled turns off opportunistic health persistence;
// health is then only saved when the client closes.
func WithAutoPersistDisabled() uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.AutoPersistDisabled = true
	}
}

// WithAppendedUserAgent appends extra detail to the User-Agent header.
func WithAppendedUserAgent(userAgent string) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.AppendedUserAgent = userAgent
	}
}

// WithRequestTimeout bounds a single request attempt. Default is 10 minutes.
func WithRequestTimeout(timeout time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if timeout > 0 {
			c.RequestTimeout = timeout
		}
	}
}

// WithRequestRetries sets the per-endpoint retry count. Default is 3; a
// negative value disables per-endpoint retries.
func WithRequestRetries(retries int) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.RequestRetries = retries
	}
}

// WithRequestRetryDelay sets the base wait between per-endpoint retries.
// Default is 500ms.
func WithRequestRetryDelay(delay time.Duration) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if delay > 0 {
			c.RequestRetryDelay = delay
		}
	}
}

// WithCredentialProvider sets where the signing credential comes from.
// Default is static configuration, then environment variables, then the
// process-wide default.
func WithCredentialProvider(provider credential.Provider) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.CredentialProvider = provider
	}
}

// WithCredential sets a fixed signing credential.
func WithCredential(cred credential.Credential) uplinktypes.Option {
	return WithCredentialProvider(credential.NewStaticProvider(cred))
}

// WithLogger sets the logger used for client output.
func WithLogger(logger log.Logger) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithHook installs a hook behind every hook installed so far.
func WithHook(h hook.Hook) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.Hooks.InsertBack(h)
	}
}

// WithPrependedHook installs a hook ahead of every hook installed so far.
func WithPrependedHook(h hook.Hook) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.Hooks.InsertFront(h)
	}
}

// WithBeforeHook installs a request-only hook behind every hook installed
// so far.
func WithBeforeHook(fn func(req *hook.Request) error) uplinktypes.Option {
	return WithHook(hook.BeforeFunc(fn))
}

// WithPrependedBeforeHook installs a request-only hook ahead of every hook
// installed so far.
func WithPrependedBeforeHook(fn func(req *hook.Request) error) uplinktypes.Option {
	return WithPrependedHook(hook.BeforeFunc(fn))
}

// WithAfterHook installs a response-only hook behind every hook installed
// so far.
func WithAfterHook(fn func(req *hook.Request, resp *http.Response) error) uplinktypes.Option {
	return WithHook(hook.AfterFunc(fn))
}

// WithPrependedAfterHook installs a response-only hook ahead of every hook
// installed so far.
func WithPrependedAfterHook(fn func(req *hook.Request, resp *http.Response) error) uplinktypes.Option {
	return WithPrependedHook(hook.AfterFunc(fn))
}

// WithUplogEnabled turns upload result logging on or off.
func WithUplogEnabled(enabled bool) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.UplogEnabled = enabled
	}
}

// WithUplogServerURL sets where buffered upload logs are posted.
func WithUplogServerURL(url string) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		c.UplogServerURL = url
	}
}

// WithUplogSizeThreshold sets the buffered byte count that triggers an
// upload log flush.
func WithUplogSizeThreshold(threshold int) uplinktypes.Option {
	return func(c *uplinktypes.ClientConfig) {
		if threshold > 0 {
			c.UplogSizeThreshold = threshold
		}
	}
}

// WithKey sets the object key for an upload.
func WithKey(key string) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		c.Key = key
	}
}

// WithFileName sets the reported file name for an upload.
// Default is the source file's base name.
func WithFileName(name string) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		c.FileName = name
	}
}

// WithMimeType declares the content type for an upload.
// Default lets the content be sniffed.
func WithMimeType(mimeType string) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		c.MimeType = mimeType
	}
}

// WithVar sets one custom policy variable, sent as an x:name field.
func WithVar(name, value string) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		if c.Vars == nil {
			c.Vars = make(map[string]string)
		}
		c.Vars[name] = value
	}
}

// WithVars merges custom policy variables into the upload.
func WithVars(vars map[string]string) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		if c.Vars == nil {
			c.Vars = make(map[string]string, len(vars))
		}
		for k, v := range vars {
			c.Vars[k] = v
		}
	}
}

// WithForceResumable routes the upload through the resumable path regardless
// of file size.
func WithForceResumable() uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		c.ForceResumable = true
	}
}

// WithToken uses a pre-minted upload token instead of signing one from the
// client credential.
func WithToken(token string) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		c.Token = token
	}
}

// WithProgress observes (uploadedBytes, totalBytes) as the upload advances.
func WithProgress(fn func(uploaded, total int64)) uplinktypes.UploadOption {
	return func(c *uplinktypes.UploadOptionConfig) {
		c.Progress = fn
	}
}
