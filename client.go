// Package uplink provides client initialization and configuration.
//
// The Client is the entry point for uploads: it wires together the region
// resolver, the endpoint health table, the resumable progress recorder, and
// the transport, and exposes single-file and batch upload operations on top
// of them.
package uplink

import (
	"context"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/nimbusfs/uplink/credential"
	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/internal/transport"
	"github.com/nimbusfs/uplink/internal/uploader"
	"github.com/nimbusfs/uplink/recorder"
	"github.com/nimbusfs/uplink/region"
	"github.com/nimbusfs/uplink/uplinktypes"
)

// Client uploads objects into the storage service. It is safe for
// concurrent use; all shared state (region cache, endpoint health, progress
// records) is internally synchronized.
type Client struct {
	cfg uplinktypes.ClientConfig

	creds     credential.Provider
	transport *transport.Client
	health    *region.HealthTable
	resolver  *region.Resolver
	recorder  *recorder.Recorder
	uploader  *uploader.Uploader
	uplog     *uplogBuffer
	logger    log.Logger
}

// New creates a Client with the provided options.
//
// Example:
//
//	client, err := uplink.New(
//	    uplink.WithCredential(credential.New(ak, sk)),
//	    uplink.WithUseHTTPS(true),
//	)
func New(opts ...uplinktypes.Option) (*Client, error) {
	cfg := uplinktypes.ClientConfig{
		UploadThreshold:       uplinktypes.DefaultUploadThreshold,
		UploadBlockSize:       uplinktypes.DefaultUploadBlockSize,
		Concurrency:           uplinktypes.DefaultConcurrency,
		BatchMaxOperationSize: uplinktypes.DefaultBatchMaxOperationSize,
		TokenLifetime:         uplinktypes.DefaultTokenLifetime,
		UplogSizeThreshold:    uplinktypes.DefaultUplogSizeThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.UcURLs) == 0 {
		cfg.UcURLs = uplinktypes.DefaultUcURLs
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger()
	}

	creds := cfg.CredentialProvider
	if creds == nil {
		creds = credential.Default()
	}

	tp := transport.New(transport.Config{
		Timeout:           cfg.RequestTimeout,
		Retries:           cfg.RequestRetries,
		RetryDelay:        cfg.RequestRetryDelay,
		AppendedUserAgent: cfg.AppendedUserAgent,
		Hooks:             &cfg.Hooks,
		Logger:            cfg.Logger,
	})

	health := region.NewHealthTable(region.HealthTableConfig{
		FrozenDuration:     cfg.FrozenDuration,
		PersistPath:        cfg.PersistFile,
		PersistInterval:    cfg.AutoPersistInterval,
		DisableAutoPersist: cfg.AutoPersistDisabled,
	})

	resolver := region.NewResolver(region.ResolverConfig{
		UcURLs:        cfg.UcURLs,
		Client:        tp,
		Health:        health,
		CacheLifetime: cfg.ResolutionsCacheLifetime,
		RsOverride:    cfg.RsURL,
	})

	rec, err := recorder.New(recorder.Config{
		RootDir:       cfg.RecorderRootDir,
		BlockLifetime: cfg.RecorderBlockLifetime,
		AlwaysFlush:   cfg.RecorderAlwaysFlush,
	})
	if err != nil {
		return nil, errors.NewError("new", err).WithMessage("initializing progress recorder")
	}

	up := uploader.New(uploader.Config{
		Transport: tp,
		Resolver:  resolver,
		Recorder:  rec,
		Logger:    cfg.Logger,
		Threshold: cfg.UploadThreshold,
		BlockSize: cfg.UploadBlockSize,
		UseHTTPS:  cfg.UseHTTPS,
	})

	client := &Client{
		cfg:       cfg,
		creds:     creds,
		transport: tp,
		health:    health,
		resolver:  resolver,
		recorder:  rec,
		uploader:  up,
		logger:    cfg.Logger,
	}
	if cfg.UplogEnabled && cfg.UplogServerURL != "" {
		client.uplog = newUplogBuffer(cfg.UplogServerURL, cfg.UplogSizeThreshold, tp, cfg.Logger)
	}
	return client, nil
}

// Resolver exposes the region resolver, letting callers pre-warm or
// invalidate the region cache.
func (c *Client) Resolver() *region.Resolver {
	return c.resolver
}

// Health exposes the endpoint health table.
func (c *Client) Health() *region.HealthTable {
	return c.health
}

// Close flushes buffered upload logs and persists endpoint health.
func (c *Client) Close() error {
	if c.uplog != nil {
		c.uplog.Flush(context.Background())
	}
	return c.health.Persist()
}
