// Package etag computes the storage service's content hash.
//
// The hash is block based: the input is split into 4 MB blocks and each block
// is SHA-1 hashed. A single-block input hashes to 0x16 followed by the block
// digest; larger inputs hash to 0x96 followed by the SHA-1 of the
// concatenated block digests. The result is URL-safe base64 encoded. The
// server returns the same value as the "hash" field of an upload response,
// which lets clients verify uploads end to end.
package etag

import (
	"crypto/sha1"
	"encoding/base64"
	"io"
	"os"
)

// BlockSize is the fixed hashing block size.
const BlockSize = 1 << 22

const (
	prefixSingle = 0x16
	prefixMulti  = 0x96
)

// Digest incrementally computes an etag. The zero value is ready to use.
type Digest struct {
	blockHashes []byte
	current     []byte
	buffered    int
}

// New creates an empty Digest.
func New() *Digest {
	return &Digest{}
}

// Write implements io.Writer. It never returns an error.
func (d *Digest) Write(p []byte) (int, error) {
	written := len(p)
	for len(p) > 0 {
		room := BlockSize - d.buffered
		if room > len(p) {
			room = len(p)
		}
		d.current = append(d.current, p[:room]...)
		d.buffered += room
		p = p[room:]
		if d.buffered == BlockSize {
			d.flushBlock()
		}
	}
	return written, nil
}

func (d *Digest) flushBlock() {
	sum := sha1.Sum(d.current)
	d.blockHashes = append(d.blockHashes, sum[:]...)
	d.current = d.current[:0]
	d.buffered = 0
}

// Sum returns the etag of everything written so far.
func (d *Digest) Sum() string {
	blockHashes := d.blockHashes
	if d.buffered > 0 || len(blockHashes) == 0 {
		sum := sha1.Sum(d.current)
		blockHashes = append(append([]byte{}, blockHashes...), sum[:]...)
	}

	var raw [1 + sha1.Size]byte
	if len(blockHashes) == sha1.Size {
		raw[0] = prefixSingle
		copy(raw[1:], blockHashes)
	} else {
		raw[0] = prefixMulti
		sum := sha1.Sum(blockHashes)
		copy(raw[1:], sum[:])
	}
	return base64.URLEncoding.EncodeToString(raw[:])
}

// FromReader computes the etag of everything readable from r.
func FromReader(r io.Reader) (string, error) {
	d := New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return d.Sum(), nil
}

// FromBytes computes the etag of data.
func FromBytes(data []byte) string {
	d := New()
	_, _ = d.Write(data)
	return d.Sum()
}

// FromFile computes the etag of the file at path.
func FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return FromReader(f)
}
