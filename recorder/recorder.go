// Package recorder persists resumable upload progress.
//
// Records are keyed by the source's content fingerprint and block size, so
// the same bytes resume no matter where they live on disk and uploads of
// different content never contend. Each record file holds a metadata header
// line followed by one JSON line per acknowledged block. On resume the
// record is trusted only when the fingerprint, file size, and block size all
// match and the blocks form an unbroken prefix; anything else discards the
// record and the upload starts over. Acknowledged blocks expire with the
// server-side block lifetime, seven days by default.
package recorder

import (
	"bufio"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultBlockLifetime matches how long the service keeps unfinished blocks.
const DefaultBlockLifetime = 7 * 24 * time.Hour

// Config controls a Recorder.
type Config struct {
	// RootDir is where record files live. Defaults to a directory under
	// the OS temp dir.
	RootDir string

	// BlockLifetime is how long an acknowledged block stays resumable.
	BlockLifetime time.Duration

	// AlwaysFlush syncs the record file after every appended block, trading
	// throughput for resumability after a crash.
	AlwaysFlush bool
}

// Recorder reads and writes upload progress records under a root directory.
type Recorder struct {
	root          string
	blockLifetime time.Duration
	alwaysFlush   bool
}

// Metadata is the record header describing the source at the time the
// upload started.
type Metadata struct {
	Fingerprint string `json:"fingerprint"`
	FileSize    int64  `json:"file_size"`
	BlockSize   int64  `json:"block_size"`
}

// BlockRecord is one acknowledged block.
type BlockRecord struct {
	Context   string `json:"ctx"`
	Offset    int64  `json:"offset"`
	Size      int64  `json:"block_size"`
	CreatedAt int64  `json:"created_timestamp"`
}

// Record is a loaded progress record: the header plus the usable prefix of
// acknowledged blocks.
type Record struct {
	Metadata Metadata
	Blocks   []BlockRecord
}

// UploadedSize returns how many bytes the recorded blocks cover.
func (r *Record) UploadedSize() int64 {
	var total int64
	for _, b := range r.Blocks {
		total += b.Size
	}
	return total
}

// New creates a Recorder rooted at cfg.RootDir, creating the directory as
// needed.
func New(cfg Config) (*Recorder, error) {
	if cfg.RootDir == "" {
		cfg.RootDir = filepath.Join(os.TempDir(), "uplink", "records")
	}
	if cfg.BlockLifetime == 0 {
		cfg.BlockLifetime = DefaultBlockLifetime
	}
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{
		root:          cfg.RootDir,
		blockLifetime: cfg.BlockLifetime,
		alwaysFlush:   cfg.AlwaysFlush,
	}, nil
}

// Medium is an open record accepting block appends.
type Medium struct {
	file        *os.File
	alwaysFlush bool
}

// Append records one acknowledged block.
func (m *Medium) Append(ctx string, offset, size int64) error {
	line, err := json.Marshal(BlockRecord{
		Context:   ctx,
		Offset:    offset,
		Size:      size,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	if _, err := m.file.Write(append(line, '\n')); err != nil {
		return err
	}
	if m.alwaysFlush {
		return m.file.Sync()
	}
	return nil
}

// Close closes the record file.
func (m *Medium) Close() error {
	return m.file.Close()
}

// Create starts a fresh record for the fingerprinted source, replacing any
// existing one, and returns a Medium for appending blocks.
func (r *Recorder) Create(fingerprint string, fileSize, blockSize int64) (*Medium, error) {
	f, err := os.OpenFile(r.recordPath(fingerprint, blockSize), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	header, err := json.Marshal(Metadata{
		Fingerprint: fingerprint,
		FileSize:    fileSize,
		BlockSize:   blockSize,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(append(header, '\n')); err != nil {
		f.Close()
		return nil, err
	}
	if r.alwaysFlush {
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &Medium{file: f, alwaysFlush: r.alwaysFlush}, nil
}

// OpenAppend reopens an existing record for appending further blocks.
func (r *Recorder) OpenAppend(fingerprint string, blockSize int64) (*Medium, error) {
	f, err := os.OpenFile(r.recordPath(fingerprint, blockSize), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Medium{file: f, alwaysFlush: r.alwaysFlush}, nil
}

// Load reads the record for the fingerprinted source. It returns nil without
// error when no usable record exists: missing record, mismatched header, or
// a broken block sequence. Blocks past their lifetime truncate the usable
// prefix.
func (r *Recorder) Load(fingerprint string, fileSize, blockSize int64) (*Record, error) {
	f, err := os.Open(r.recordPath(fingerprint, blockSize))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !scanner.Scan() {
		return nil, scanner.Err()
	}

	var meta Metadata
	if json.Unmarshal(scanner.Bytes(), &meta) != nil {
		return nil, nil
	}
	if meta.Fingerprint != fingerprint || meta.FileSize != fileSize || meta.BlockSize != blockSize {
		return nil, nil
	}

	expiry := time.Now().Add(-r.blockLifetime).Unix()
	record := &Record{Metadata: meta}
	var nextOffset int64
	for scanner.Scan() {
		var block BlockRecord
		if json.Unmarshal(scanner.Bytes(), &block) != nil {
			break
		}
		if block.CreatedAt < expiry {
			break
		}
		if block.Offset != nextOffset {
			break
		}
		record.Blocks = append(record.Blocks, block)
		nextOffset += block.Size
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return record, nil
}

// Remove deletes the record for the fingerprinted source, if any.
func (r *Recorder) Remove(fingerprint string, blockSize int64) error {
	err := os.Remove(r.recordPath(fingerprint, blockSize))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// recordPath derives the record file name from (fingerprint, blockSize).
func (r *Recorder) recordPath(fingerprint string, blockSize int64) string {
	sum := sha1.Sum([]byte(fingerprint))
	return filepath.Join(r.root, fmt.Sprintf("%x_%d", sum, blockSize))
}
