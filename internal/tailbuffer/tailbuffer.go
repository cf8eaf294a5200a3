package tailbuffer

import (
	"sync"
)

// Buffer keeps the most recent bytes written to it, up to a fixed size
type Buffer struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

// New returns a Buffer retaining up to size bytes
func New(size int) *Buffer {
	if size <= 0 {
		size = 1
	}
	return &Buffer{size: size}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.size {
		b.buf = append(b.buf[:0], p[n-b.size:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.size; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// String returns the retained bytes
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
