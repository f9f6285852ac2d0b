// Package pool reuses block-sized upload buffers.
//
// Resumable uploads read one block at a time, so without pooling every block
// costs a multi-megabyte allocation. Buffers are sized to the configured
// block size and handed back after the block has been sent.
package pool

import "sync"

// BlockPool manages reusable buffers of a fixed block size.
type BlockPool struct {
	blockSize int64
	pool      sync.Pool
}

// NewBlockPool creates a pool handing out buffers of blockSize capacity.
func NewBlockPool(blockSize int64) *BlockPool {
	p := &BlockPool{blockSize: blockSize}
	p.pool.New = func() interface{} {
		buf := make([]byte, blockSize)
		return &buf
	}
	return p
}

// Get returns a buffer of length size.
// Requests larger than the block size allocate fresh buffers that are never
// pooled, to avoid holding on to oversized memory.
func (p *BlockPool) Get(size int64) []byte {
	if size > p.blockSize {
		return make([]byte, size)
	}
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:size]
}

// Put returns buf to the pool.
// The buffer must not be used after calling Put. Buffers whose capacity does
// not match the pool's block size are dropped.
func (p *BlockPool) Put(buf []byte) {
	if int64(cap(buf)) != p.blockSize {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(&buf)
}
