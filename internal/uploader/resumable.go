package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/etag"
	"github.com/nimbusfs/uplink/recorder"
)

// blockResult is the service's answer to an mkblk call.
type blockResult struct {
	Ctx      string `json:"ctx"`
	Checksum string `json:"checksum"`
	Crc32    uint32 `json:"crc32"`
	Offset   int64  `json:"offset"`
}

// resumableUpload cuts the source into blocks, creates each with mkblk, and
// finalizes with mkfile. File sources are fingerprinted first so progress
// acknowledged in a previous run of the same content is loaded from the
// recorder and skipped; reader sources always start from scratch.
func (u *Uploader) resumableUpload(ctx context.Context, req Request, size int64) (*Response, error) {
	urls, err := u.upEndpoints(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		fingerprint string
		contexts    []string
		uploaded    int64
		medium      *recorder.Medium
	)
	if req.Reader == nil && u.cfg.Recorder != nil {
		fingerprint, err = etag.FromFile(req.SourcePath)
		if err != nil {
			return nil, errors.NewError("upload", err).WithKey(req.Key)
		}
		contexts, uploaded, medium, err = u.resumeProgress(fingerprint, size)
		if err != nil {
			return nil, errors.NewError("upload", err).WithKey(req.Key)
		}
	}
	defer func() {
		if medium != nil {
			medium.Close()
		}
	}()

	if req.Progress != nil {
		req.Progress(uploaded, size)
	}

	auth := "UpToken " + req.Token
	for offset := uploaded; offset < size; offset += u.cfg.BlockSize {
		blockSize := u.cfg.BlockSize
		if remaining := size - offset; remaining < blockSize {
			blockSize = remaining
		}

		block, err := u.readBlock(req, offset, blockSize)
		if err != nil {
			return nil, errors.NewError("mkblk", err).WithKey(req.Key)
		}
		blockCrc := crc32.ChecksumIEEE(block)

		var result blockResult
		err = u.withFailover(urls, func(endpoint string) error {
			u.cfg.Logger.Debugf("mkblk %d bytes at offset %d to %s", blockSize, offset, endpoint)
			mkblkURL := fmt.Sprintf("%s/mkblk/%d", endpoint, blockSize)
			return u.cfg.Transport.PostJSON(ctx, mkblkURL, "application/octet-stream", auth, block, &result)
		})
		u.blocks.Put(block)
		if err != nil {
			return nil, err
		}
		if result.Crc32 != 0 && result.Crc32 != blockCrc {
			return nil, errors.NewError("mkblk", errors.ErrInvalidResponse).
				WithKey(req.Key).
				WithMessage("block checksum mismatch")
		}

		contexts = append(contexts, result.Ctx)
		if medium != nil {
			if err := medium.Append(result.Ctx, offset, blockSize); err != nil {
				u.cfg.Logger.Warnf("progress record append failed: %s", err)
			}
		}

		uploaded = offset + blockSize
		if req.Progress != nil {
			req.Progress(uploaded, size)
		}
	}

	var raw json.RawMessage
	err = u.withFailover(urls, func(endpoint string) error {
		u.cfg.Logger.Debugf("mkfile %d bytes to %s", size, endpoint)
		return u.cfg.Transport.PostJSON(ctx, mkfilePath(endpoint, size, req),
			"text/plain", auth, []byte(strings.Join(contexts, ",")), &raw)
	})
	if err != nil {
		return nil, err
	}

	if fingerprint != "" {
		if medium != nil {
			medium.Close()
			medium = nil
		}
		if err := u.cfg.Recorder.Remove(fingerprint, u.cfg.BlockSize); err != nil {
			u.cfg.Logger.Warnf("progress record cleanup failed: %s", err)
		}
	}
	return parseResponse(raw)
}

// readBlock reads the next block from the request source into a pooled
// buffer. File sources are read at offset; reader sources are consumed
// sequentially, so offsets must arrive in ascending order.
func (u *Uploader) readBlock(req Request, offset, blockSize int64) ([]byte, error) {
	if req.Reader == nil {
		return u.readChunk(req.SourcePath, offset, blockSize)
	}
	buf := u.blocks.Get(blockSize)
	if _, err := io.ReadFull(req.Reader, buf); err != nil {
		u.blocks.Put(buf)
		return nil, err
	}
	return buf, nil
}

// resumeProgress loads any usable record for this fingerprint and opens a
// medium for recording further blocks.
func (u *Uploader) resumeProgress(fingerprint string, size int64) ([]string, int64, *recorder.Medium, error) {
	record, err := u.cfg.Recorder.Load(fingerprint, size, u.cfg.BlockSize)
	if err != nil {
		return nil, 0, nil, err
	}

	if record != nil && len(record.Blocks) > 0 {
		contexts := make([]string, 0, len(record.Blocks))
		for _, block := range record.Blocks {
			contexts = append(contexts, block.Context)
		}
		uploaded := record.UploadedSize()
		if uploaded <= size {
			medium, err := u.cfg.Recorder.OpenAppend(fingerprint, u.cfg.BlockSize)
			if err != nil {
				return nil, 0, nil, err
			}
			u.cfg.Logger.Infof("resuming upload of %s: %d of %d bytes done", fingerprint, uploaded, size)
			return contexts, uploaded, medium, nil
		}
	}

	medium, err := u.cfg.Recorder.Create(fingerprint, size, u.cfg.BlockSize)
	if err != nil {
		return nil, 0, nil, err
	}
	return nil, 0, medium, nil
}
