// Package uploader drives single-file uploads.
//
// Small files go up in one multipart form request; larger ones are cut into
// blocks, each created with an mkblk call and stitched together with a final
// mkfile call. Both paths share the same endpoint failover rule: only a
// transport-level failure moves the operation to the next healthy upload
// endpoint, and the failed endpoint is frozen for everyone else.
package uploader

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/internal/pool"
	"github.com/nimbusfs/uplink/internal/transport"
	"github.com/nimbusfs/uplink/internal/validation"
	"github.com/nimbusfs/uplink/recorder"
	"github.com/nimbusfs/uplink/region"
)

// DefaultBlockSize is the resumable upload block size.
const DefaultBlockSize int64 = 1 << 22

// DefaultThreshold is the file size at which uploads switch from the form
// path to the resumable path.
const DefaultThreshold int64 = 1 << 22

// Config wires an Uploader.
type Config struct {
	Transport *transport.Client
	Resolver  *region.Resolver
	Recorder  *recorder.Recorder
	Logger    log.Logger

	// Threshold is the size cutoff for the form path.
	Threshold int64

	// BlockSize is the resumable block size.
	BlockSize int64

	// UseHTTPS selects the HTTPS endpoint set.
	UseHTTPS bool
}

// Request describes one upload.
type Request struct {
	// Token is the upload token in wire form.
	Token string

	// AccessKey and Bucket locate the region serving the upload.
	AccessKey string
	Bucket    string

	// SourcePath is the file to upload.
	SourcePath string

	// Reader, when set, supplies the content instead of SourcePath. Size
	// must then hold the exact content length. Reader sources are not
	// resumable; an interrupted upload starts over.
	Reader io.Reader

	// Size is the content length of Reader. Ignored for file sources.
	Size int64

	// Key is the object key; empty lets the server pick one.
	Key string

	// FileName is the reported file name, defaulting to the source base name.
	FileName string

	// MimeType is the declared content type; empty means sniff.
	MimeType string

	// Vars are custom policy variables, sent as x:name fields.
	Vars map[string]string

	// ForceResumable routes the upload through the resumable path
	// regardless of size.
	ForceResumable bool

	// Progress, when set, observes (uploadedBytes, totalBytes) as the
	// upload advances.
	Progress func(uploaded, total int64)
}

// Response is the parsed upload result.
type Response struct {
	// Key is the object key the upload landed on.
	Key string

	// Hash is the server-computed content hash.
	Hash string

	// Raw is the full response body, which carries any extra fields a
	// custom returnBody policy produced.
	Raw []byte
}

// Uploader uploads single files.
type Uploader struct {
	cfg    Config
	blocks *pool.BlockPool
}

// New creates an Uploader from cfg.
func New(cfg Config) *Uploader {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger()
	}
	return &Uploader{cfg: cfg, blocks: pool.NewBlockPool(cfg.BlockSize)}
}

// Upload validates req, picks the direct or resumable path, and runs the
// upload to completion.
func (u *Uploader) Upload(ctx context.Context, req Request) (*Response, error) {
	if err := validation.ValidateMimeType(req.MimeType); err != nil {
		return nil, err
	}
	if err := validation.ValidateObjectKey(req.Key); err != nil {
		return nil, err
	}
	var size int64
	if req.Reader != nil {
		size = req.Size
	} else {
		var err error
		size, err = validation.ValidateSourceFile(req.SourcePath)
		if err != nil {
			return nil, err
		}
		if req.FileName == "" {
			req.FileName = filepath.Base(req.SourcePath)
		}
	}

	if req.ForceResumable || size >= u.cfg.Threshold {
		if size == 0 {
			return nil, errors.NewError("upload", errors.ErrEmptyFile).WithKey(req.Key)
		}
		return u.resumableUpload(ctx, req, size)
	}
	return u.formUpload(ctx, req, size)
}

// upEndpoints resolves the ordered upload endpoint list for the request,
// concatenating the candidates of every region serving the bucket.
func (u *Uploader) upEndpoints(ctx context.Context, req Request) ([]string, error) {
	regions, err := u.cfg.Resolver.Query(ctx, req.AccessKey, req.Bucket)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, reg := range regions {
		urls = append(urls, reg.URLs(region.ServiceUp, u.cfg.UseHTTPS)...)
	}
	if len(urls) == 0 {
		return nil, errors.NewError("upload", errors.ErrNoEndpointAvailable)
	}
	return urls, nil
}

// withFailover runs attempt against healthy endpoints until one succeeds or
// a non-transport error ends the operation. Failed endpoints are frozen and
// excluded from later picks within this call.
func (u *Uploader) withFailover(urls []string, attempt func(endpoint string) error) error {
	exclude := make(map[string]bool, len(urls))
	var lastErr error
	for range urls {
		endpoint, err := u.cfg.Resolver.SelectCandidate(urls, exclude)
		if err != nil {
			if lastErr != nil {
				return lastErr
			}
			return errors.NewError("upload", err)
		}

		err = attempt(endpoint)
		if err == nil {
			return nil
		}
		if !errors.IsTransport(err) {
			return err
		}

		u.cfg.Logger.Warnf("endpoint %s failed, freezing: %s", endpoint, err)
		u.cfg.Resolver.MarkFailed(endpoint)
		exclude[endpoint] = true
		lastErr = err
	}
	return lastErr
}

// readChunk reads one block from the source file into a pooled buffer.
// The caller returns the buffer with u.blocks.Put once the block is sent.
func (u *Uploader) readChunk(path string, offset, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := u.blocks.Get(size)
	// ReadAt may pair a full read at end of file with io.EOF.
	if n, err := f.ReadAt(buf, offset); err != nil && !(err == io.EOF && n == len(buf)) {
		u.blocks.Put(buf)
		return nil, err
	}
	return buf, nil
}

// readAll reads the whole source into a pooled buffer.
func (u *Uploader) readAll(req Request, size int64) ([]byte, error) {
	if req.Reader == nil {
		return u.readChunk(req.SourcePath, 0, size)
	}
	buf := u.blocks.Get(size)
	if _, err := io.ReadFull(req.Reader, buf); err != nil {
		u.blocks.Put(buf)
		return nil, err
	}
	return buf, nil
}

func encodeSegment(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// mkfilePath assembles the finalize URL path: size first, then optional key,
// fname, mimeType, and x-var segments, each base64 encoded.
func mkfilePath(endpoint string, size int64, req Request) string {
	path := fmt.Sprintf("%s/mkfile/%d", endpoint, size)
	if req.Key != "" {
		path += "/key/" + encodeSegment(req.Key)
	}
	if req.FileName != "" {
		path += "/fname/" + encodeSegment(req.FileName)
	}
	if req.MimeType != "" {
		path += "/mimeType/" + encodeSegment(req.MimeType)
	}
	for _, name := range sortedVarNames(req.Vars) {
		path += "/" + url.PathEscape("x:"+name) + "/" + encodeSegment(req.Vars[name])
	}
	return path
}

func sortedVarNames(vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
