package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/nimbusfs/uplink/internal/transport"
)

// uplogEntry is one line of the upload result log shipped to the log
// collection service.
type uplogEntry struct {
	UpType    string `json:"up_type"`
	FileSize  int64  `json:"file_size"`
	Elapsed   int64  `json:"total_elapsed_time"`
	Error     string `json:"error_description,omitempty"`
	Timestamp int64  `json:"up_time"`
}

// uplogBuffer accumulates upload result lines and posts them in bulk once
// the buffered size crosses the threshold. Flushing is best effort; a failed
// post drops the batch rather than blocking uploads.
type uplogBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	threshold int
	serverURL string
	transport *transport.Client
	logger    log.Logger
}

func newUplogBuffer(serverURL string, threshold int, tp *transport.Client, logger log.Logger) *uplogBuffer {
	return &uplogBuffer{
		threshold: threshold,
		serverURL: serverURL,
		transport: tp,
		logger:    logger,
	}
}

// record appends one result line and flushes when the buffer is full.
func (u *uplogBuffer) record(ctx context.Context, entry uplogEntry) {
	entry.Timestamp = time.Now().Unix()
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	u.mu.Lock()
	u.buf.Write(line)
	u.buf.WriteByte('\n')
	full := u.buf.Len() >= u.threshold
	u.mu.Unlock()

	if full {
		u.Flush(ctx)
	}
}

// Flush posts the buffered lines to the log service.
func (u *uplogBuffer) Flush(ctx context.Context) {
	u.mu.Lock()
	if u.buf.Len() == 0 {
		u.mu.Unlock()
		return
	}
	payload := make([]byte, u.buf.Len())
	copy(payload, u.buf.Bytes())
	u.buf.Reset()
	u.mu.Unlock()

	if err := u.transport.PostJSON(ctx, u.serverURL, "text/plain", "", payload, nil); err != nil {
		u.logger.Debugf("upload log flush failed: %s", err)
	}
}
