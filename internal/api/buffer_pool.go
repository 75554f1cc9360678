package api

import (
	"bytes"
	"sync"
)

// bufferPool reuses byte buffers for JSON request bodies. The poller and the
// interactive actions send many small bodies over a session's lifetime.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// getBuffer retrieves a reset buffer from the pool.
// Caller must call putBuffer() when done.
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool unless it grew too large
func putBuffer(buf *bytes.Buffer) {
	const maxBufferSize = 16 * 1024
	if buf.Cap() <= maxBufferSize {
		bufferPool.Put(buf)
	}
}
