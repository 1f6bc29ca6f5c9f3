package session

import "sync"

// DefaultBufferLimit bounds the accumulated stdout/stderr per session.
// Dev servers can be chatty (file-watch rebuild logs), so the buffer
// keeps only the most recent bytes rather than growing without bound.
const DefaultBufferLimit = 256 * 1024

// Buffer is a concurrency-safe, ring-limited byte buffer for captured
// process output. When an append would exceed the limit, the oldest
// bytes are discarded.
type Buffer struct {
	mu    sync.Mutex
	limit int
	data  []byte

	// truncated records whether any bytes have been discarded, so
	// diagnostics can note that the head of the output is missing.
	truncated bool
}

// NewBuffer creates a Buffer with the given byte limit.
// A non-positive limit uses DefaultBufferLimit.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	return &Buffer{limit: limit}
}

// Append adds a chunk to the buffer, discarding the oldest bytes if the
// limit would be exceeded. A chunk larger than the whole limit keeps
// only its tail.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(chunk) >= b.limit {
		// The chunk alone fills the buffer — keep its tail.
		b.data = append(b.data[:0], chunk[len(chunk)-b.limit:]...)
		b.truncated = true
		return
	}

	overflow := len(b.data) + len(chunk) - b.limit
	if overflow > 0 {
		b.data = b.data[overflow:]
		b.truncated = true
	}
	b.data = append(b.data, chunk...)
}

// Bytes returns a copy of the buffered output.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// String returns the buffered output as a string.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Len returns the number of bytes currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Truncated reports whether any output has been discarded.
func (b *Buffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
