// Package uplinktypes provides shared type definitions for the uplink module.
package uplinktypes

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/nimbusfs/uplink/credential"
	"github.com/nimbusfs/uplink/hook"
)

// Default client configuration values.
const (
	// DefaultUploadThreshold is the file size at which uploads switch from
	// the single-request form path to the resumable block path.
	DefaultUploadThreshold int64 = 1 << 22

	// DefaultUploadBlockSize is the resumable upload block size.
	DefaultUploadBlockSize int64 = 1 << 22

	// DefaultConcurrency is the number of uploads a batch runs in parallel.
	DefaultConcurrency = 4

	// DefaultBatchMaxOperationSize caps how many jobs one batch accepts.
	DefaultBatchMaxOperationSize = 1000

	// DefaultTokenLifetime is how long self-minted upload tokens stay valid.
	DefaultTokenLifetime = time.Hour

	// DefaultUplogSizeThreshold is the buffered byte count that triggers an
	// upload log flush.
	DefaultUplogSizeThreshold = 4 << 10
)

// DefaultUcURLs are the configuration service endpoints used when none are
// configured explicitly.
var DefaultUcURLs = []string{"https://uc.nimbusfs.io", "https://uc-backup.nimbusfs.io"}

// ClientConfig holds every tunable of a Client. Use the With* functional
// options to populate it.
type ClientConfig struct {
	// UseHTTPS selects the HTTPS endpoint set for every service.
	UseHTTPS bool

	// UcURLs are the configuration service endpoints, tried in order.
	UcURLs []string

	// RsURL overrides the object metadata endpoints of resolved regions.
	RsURL string

	// UploadThreshold is the form/resumable cutoff in bytes.
	UploadThreshold int64

	// UploadBlockSize is the resumable block size in bytes.
	UploadBlockSize int64

	// Concurrency is the number of batch jobs in flight at once.
	Concurrency int

	// BatchMaxOperationSize caps how many jobs one batch accepts.
	BatchMaxOperationSize int

	// TokenLifetime is how long self-minted upload tokens stay valid.
	TokenLifetime time.Duration

	// RecorderRootDir is where resumable progress records live. Empty uses
	// a directory under the OS temp dir.
	RecorderRootDir string

	// RecorderBlockLifetime is how long recorded blocks stay resumable.
	RecorderBlockLifetime time.Duration

	// RecorderAlwaysFlush syncs the record file after every block.
	RecorderAlwaysFlush bool

	// ResolutionsCacheLifetime is how long region query answers are cached.
	ResolutionsCacheLifetime time.Duration

	// FrozenDuration is how long a failed endpoint stays out of rotation.
	FrozenDuration time.Duration

	// PersistFile, when set, persists endpoint health across restarts.
	PersistFile string

	// AutoPersistInterval bounds opportunistic health persistence.
	AutoPersistInterval time.Duration

	// AutoPersistDisabled turns opportunistic health persistence off.
	AutoPersistDisabled bool

	// AppendedUserAgent is extra detail appended to the User-Agent header.
	AppendedUserAgent string

	// RequestTimeout bounds a single request attempt.
	RequestTimeout time.Duration

	// RequestRetries is the per-endpoint retry count. Negative disables
	// retries.
	RequestRetries int

	// RequestRetryDelay is the base wait between per-endpoint retries.
	RequestRetryDelay time.Duration

	// CredentialProvider supplies the signing credential. Defaults to the
	// static/environment/global chain.
	CredentialProvider credential.Provider

	// Logger receives structured output. Defaults to the standard logger.
	Logger log.Logger

	// Hooks is the request hook chain.
	Hooks hook.Chain

	// UplogEnabled turns on upload result logging to the log service.
	UplogEnabled bool

	// UplogServerURL is where buffered upload logs are posted.
	UplogServerURL string

	// UplogSizeThreshold is the buffered byte count that triggers a flush.
	UplogSizeThreshold int
}

// Option mutates a ClientConfig.
type Option func(*ClientConfig)

// UploadOptionConfig holds per-upload overrides.
type UploadOptionConfig struct {
	// Key is the object key; empty lets the server pick one.
	Key string

	// FileName is the reported file name.
	FileName string

	// MimeType is the declared content type; empty means sniff.
	MimeType string

	// Vars are custom policy variables, sent as x:name fields.
	Vars map[string]string

	// ForceResumable routes the upload through the resumable path
	// regardless of size.
	ForceResumable bool

	// Token overrides the self-minted upload token.
	Token string

	// Progress observes (uploadedBytes, totalBytes) as the upload advances.
	Progress func(uploaded, total int64)
}

// UploadOption mutates an UploadOptionConfig.
type UploadOption func(*UploadOptionConfig)
