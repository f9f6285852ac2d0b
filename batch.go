package uplink

import (
	"context"
	"io"
	"sync"

	"github.com/nimbusfs/uplink/errors"
	"github.com/nimbusfs/uplink/internal/validation"
	"github.com/nimbusfs/uplink/uplinktypes"
)

// Job is one upload inside a batch.
type Job struct {
	// SourcePath is the file to upload. Leave empty for stream jobs.
	SourcePath string

	// SourceReader supplies the content for stream jobs. Stream jobs are
	// never resumable and SourceSize must hold their exact byte count.
	SourceReader io.Reader
	SourceSize   int64

	// Key is the object key; empty lets the server pick one.
	Key string

	// FileName is the reported file name, defaulting to the source base name.
	FileName string

	// MimeType is the declared content type; empty means sniff.
	MimeType string

	// Vars are custom policy variables.
	Vars map[string]string

	// ForceResumable routes this job through the resumable path.
	ForceResumable bool

	// Progress observes this job's (uploadedBytes, totalBytes).
	Progress func(uploaded, total int64)

	// OnResult receives the job's terminal outcome: a response on success
	// or an error on failure, never both, exactly once.
	OnResult func(resp *UploadResponse, err error)
}

// BatchUploader runs many uploads into one bucket with bounded concurrency.
// Jobs are validated as they are enqueued, so a batch never starts with work
// that is already known to fail. One job's failure never affects the others.
//
// Enqueue calls must finish before Start; a BatchUploader is single use.
type BatchUploader struct {
	client *Client
	bucket string
	token  string

	mu      sync.Mutex
	jobs    []Job
	workers int
	started bool
}

// NewBatch creates a batch uploading into bucket.
func (c *Client) NewBatch(bucket string) *BatchUploader {
	return &BatchUploader{client: c, bucket: bucket}
}

// NewSizedBatch creates a batch uploading into bucket, sized for
// expectedJobs and running at most workers jobs at once. Zero or negative
// workers keeps the client-wide concurrency.
func (c *Client) NewSizedBatch(bucket string, expectedJobs, workers int) *BatchUploader {
	b := c.NewBatch(bucket)
	b.Reserve(expectedJobs)
	b.SetWorkers(workers)
	return b
}

// Reserve sizes the job list for n expected jobs. It is a capacity hint
// only; the batch still accepts jobs past n up to the configured limit.
func (b *BatchUploader) Reserve(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > cap(b.jobs) {
		jobs := make([]Job, len(b.jobs), n)
		copy(jobs, b.jobs)
		b.jobs = jobs
	}
}

// SetWorkers overrides the client-wide concurrency for this batch.
// Zero or negative keeps the client default.
func (b *BatchUploader) SetWorkers(n int) {
	b.mu.Lock()
	b.workers = n
	b.mu.Unlock()
}

// UseToken makes every job in the batch upload under a pre-minted token
// instead of tokens signed from the client credential.
func (b *BatchUploader) UseToken(token string) {
	b.mu.Lock()
	b.token = token
	b.mu.Unlock()
}

// Enqueue admits a job into the batch. The job's MIME type, source file,
// and key are validated here; a rejected job is never admitted and will not
// produce an OnResult callback.
func (b *BatchUploader) Enqueue(job Job) error {
	if err := validation.ValidateMimeType(job.MimeType); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(job.Key); err != nil {
		return err
	}
	size := job.SourceSize
	if job.SourceReader == nil {
		var err error
		size, err = validation.ValidateSourceFile(job.SourcePath)
		if err != nil {
			return err
		}
	}
	if job.ForceResumable && size == 0 {
		return errors.NewError("enqueue", errors.ErrEmptyFile).WithKey(job.Key)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return errors.NewError("enqueue", errors.ErrInvalidInput).
			WithMessage("batch already started")
	}
	if len(b.jobs) >= b.client.cfg.BatchMaxOperationSize {
		return errors.NewError("enqueue", errors.ErrInvalidInput).
			WithMessage("batch is full")
	}
	b.jobs = append(b.jobs, job)
	return nil
}

// Len returns how many jobs the batch holds.
func (b *BatchUploader) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.jobs)
}

// Start runs every enqueued job and blocks until all of them reach a
// terminal state. At most the configured concurrency runs at once, and each
// job's OnResult callback fires exactly once.
func (b *BatchUploader) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.NewError("start", errors.ErrInvalidInput).
			WithMessage("batch already started")
	}
	b.started = true
	jobs := b.jobs
	workers := b.workers
	b.mu.Unlock()

	if workers <= 0 {
		workers = b.client.cfg.Concurrency
	}
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(job Job) {
			defer wg.Done()
			defer func() { <-semaphore }()
			b.runJob(ctx, job)
		}(jobs[i])
	}
	wg.Wait()
	return nil
}

func (b *BatchUploader) runJob(ctx context.Context, job Job) {
	opts := []uplinktypes.UploadOption{
		WithKey(job.Key),
		WithFileName(job.FileName),
		WithMimeType(job.MimeType),
	}
	if len(job.Vars) > 0 {
		opts = append(opts, WithVars(job.Vars))
	}
	if job.ForceResumable {
		opts = append(opts, WithForceResumable())
	}
	if job.Progress != nil {
		opts = append(opts, WithProgress(job.Progress))
	}
	if b.token != "" {
		opts = append(opts, WithToken(b.token))
	}

	var (
		resp *UploadResponse
		err  error
	)
	if job.SourceReader != nil {
		resp, err = b.client.UploadReader(ctx, b.bucket, job.SourceReader, job.SourceSize, opts...)
	} else {
		resp, err = b.client.UploadFile(ctx, b.bucket, job.SourcePath, opts...)
	}
	if job.OnResult != nil {
		job.OnResult(resp, err)
	}
}
