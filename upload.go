package uplink

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/internal/uploader"
	"github.com/nimbusfs/uplink/policy"
	"github.com/nimbusfs/uplink/uplinktypes"
)

// UploadResponse is the result of a completed upload.
type UploadResponse struct {
	// Key is the object key the upload landed on.
	Key string

	// Hash is the server-computed content hash, comparable with etag.FromFile.
	Hash string

	// Raw is the full response body, carrying any extra fields a custom
	// returnBody policy produced.
	Raw []byte
}

// UploadFile uploads the file at path into bucket. Unless a pre-minted
// token is supplied with WithToken, the client signs one from its credential
// scoped to the bucket (or to the exact key when WithKey is used).
//
// Files below the upload threshold go up in a single form request; larger
// ones use resumable blocks and leave a progress record that a later call
// picks up after an interruption.
func (c *Client) UploadFile(ctx context.Context, bucket, path string, opts ...uplinktypes.UploadOption) (*UploadResponse, error) {
	var optCfg uplinktypes.UploadOptionConfig
	for _, opt := range opts {
		opt(&optCfg)
	}

	token, accessKey, err := c.uploadToken(bucket, optCfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.uploader.Upload(ctx, uploader.Request{
		Token:          token,
		AccessKey:      accessKey,
		Bucket:         bucket,
		SourcePath:     path,
		Key:            optCfg.Key,
		FileName:       optCfg.FileName,
		MimeType:       optCfg.MimeType,
		Vars:           optCfg.Vars,
		ForceResumable: optCfg.ForceResumable,
		Progress:       optCfg.Progress,
	})
	var size int64
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}
	c.recordUplog(ctx, size, optCfg.ForceResumable, start, err)
	if err != nil {
		return nil, err
	}
	return &UploadResponse{Key: resp.Key, Hash: resp.Hash, Raw: resp.Raw}, nil
}

// UploadReader uploads size bytes read from r into bucket. Stream uploads
// cannot be resumed after an interruption; a retried call reads the stream
// from scratch.
func (c *Client) UploadReader(ctx context.Context, bucket string, r io.Reader, size int64, opts ...uplinktypes.UploadOption) (*UploadResponse, error) {
	var optCfg uplinktypes.UploadOptionConfig
	for _, opt := range opts {
		opt(&optCfg)
	}

	token, accessKey, err := c.uploadToken(bucket, optCfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.uploader.Upload(ctx, uploader.Request{
		Token:          token,
		AccessKey:      accessKey,
		Bucket:         bucket,
		Reader:         r,
		Size:           size,
		Key:            optCfg.Key,
		FileName:       optCfg.FileName,
		MimeType:       optCfg.MimeType,
		Vars:           optCfg.Vars,
		ForceResumable: optCfg.ForceResumable,
		Progress:       optCfg.Progress,
	})
	c.recordUplog(ctx, size, optCfg.ForceResumable, start, err)
	if err != nil {
		return nil, err
	}
	return &UploadResponse{Key: resp.Key, Hash: resp.Hash, Raw: resp.Raw}, nil
}

// uploadToken returns the wire-form token and the access key behind it,
// minting one from the client credential when none was supplied.
func (c *Client) uploadToken(bucket string, optCfg uplinktypes.UploadOptionConfig) (string, string, error) {
	if optCfg.Token != "" {
		parsed, err := policy.Parse(optCfg.Token)
		if err != nil {
			return "", "", err
		}
		return parsed.String(), parsed.AccessKey(), nil
	}

	cred, err := c.creds.Get()
	if err != nil {
		return "", "", errors.NewError("upload", err).WithMessage("no credential configured")
	}

	builder := policy.ForBucket(bucket, c.cfg.TokenLifetime)
	if optCfg.Key != "" {
		builder = policy.ForObject(bucket, optCfg.Key, c.cfg.TokenLifetime)
	}
	built, err := builder.Build()
	if err != nil {
		return "", "", err
	}
	token, err := policy.FromPolicy(built, cred)
	if err != nil {
		return "", "", err
	}
	return token.String(), cred.AccessKey(), nil
}

func (c *Client) recordUplog(ctx context.Context, size int64, resumable bool, start time.Time, uploadErr error) {
	if c.uplog == nil {
		return
	}

	entry := uplogEntry{
		UpType:   "form",
		FileSize: size,
		Elapsed:  time.Since(start).Milliseconds(),
	}
	if resumable || size >= c.cfg.UploadThreshold {
		entry.UpType = "chunked"
	}
	if uploadErr != nil {
		entry.Error = uploadErr.Error()
	}
	c.uplog.record(ctx, entry)
}
