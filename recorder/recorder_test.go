package recorder

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFingerprint = "Fp3kTQkJKW5VzkCcDMn38Ti97eo5"

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := New(Config{RootDir: t.TempDir()})
	require.NoError(t, err)
	return rec
}

func TestRecorder_CreateAppendLoad(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Append("ctx-1", 0, 400))
	require.NoError(t, medium.Append("ctx-2", 400, 400))
	require.NoError(t, medium.Close())

	record, err := rec.Load(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, testFingerprint, record.Metadata.Fingerprint)
	assert.Equal(t, int64(1000), record.Metadata.FileSize)
	require.Len(t, record.Blocks, 2)
	assert.Equal(t, "ctx-1", record.Blocks[0].Context)
	assert.Equal(t, "ctx-2", record.Blocks[1].Context)
	assert.Equal(t, int64(800), record.UploadedSize())
}

func TestRecorder_OpenAppendContinues(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Append("ctx-1", 0, 400))
	require.NoError(t, medium.Close())

	medium, err = rec.OpenAppend(testFingerprint, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Append("ctx-2", 400, 400))
	require.NoError(t, medium.Close())

	record, err := rec.Load(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Len(t, record.Blocks, 2)
}

func TestRecorder_LoadMissingRecord(t *testing.T) {
	rec := newTestRecorder(t)

	record, err := rec.Load(testFingerprint, 100, 400)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRecorder_LoadRejectsChangedSize(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Append("ctx-1", 0, 400))
	require.NoError(t, medium.Close())

	record, err := rec.Load(testFingerprint, 2000, 400)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRecorder_LoadRejectsDifferentBlockSize(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Close())

	record, err := rec.Load(testFingerprint, 1000, 800)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRecorder_LoadStopsAtGap(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 2000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Append("ctx-1", 0, 400))
	// Offset 1200 leaves a hole after byte 400.
	require.NoError(t, medium.Append("ctx-3", 1200, 400))
	require.NoError(t, medium.Close())

	record, err := rec.Load(testFingerprint, 2000, 400)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Len(t, record.Blocks, 1)
	assert.Equal(t, "ctx-1", record.Blocks[0].Context)
}

func TestRecorder_LoadDropsExpiredBlocks(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Close())

	// Append a block recorded well past the default lifetime.
	stale, err := json.Marshal(BlockRecord{
		Context:   "ctx-stale",
		Offset:    0,
		Size:      400,
		CreatedAt: time.Now().Add(-DefaultBlockLifetime - time.Hour).Unix(),
	})
	require.NoError(t, err)
	f, err := os.OpenFile(rec.recordPath(testFingerprint, 400), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write(append(stale, '\n'))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	record, err := rec.Load(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Empty(t, record.Blocks)
}

func TestRecorder_FingerprintSeparatesRecords(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Append("ctx-1", 0, 400))
	require.NoError(t, medium.Close())

	record, err := rec.Load("FqDifferentContentEntirely00", 1000, 400)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRecorder_Remove(t *testing.T) {
	rec := newTestRecorder(t)

	medium, err := rec.Create(testFingerprint, 1000, 400)
	require.NoError(t, err)
	require.NoError(t, medium.Close())

	require.NoError(t, rec.Remove(testFingerprint, 400))

	record, err := rec.Load(testFingerprint, 1000, 400)
	require.NoError(t, err)
	assert.Nil(t, record)

	// Removing twice is fine.
	require.NoError(t, rec.Remove(testFingerprint, 400))
}
