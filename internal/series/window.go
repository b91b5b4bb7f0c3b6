package series

import "sync"

// Window selects the contiguous range of a Buffer shown on screen. It only
// stores its start offset; bounds are recomputed from the buffer on every read.
type Window struct {
	mu     sync.Mutex
	buf    *Buffer
	length int
	start  int
}

// NewWindow creates a window of the given length over buf.
// A non-positive length spans the whole buffer capacity.
func NewWindow(buf *Buffer, length int) *Window {
	if length <= 0 {
		length = buf.Cap()
	}
	return &Window{buf: buf, length: length}
}

// Length returns the configured window length.
func (w *Window) Length() int {
	return w.length
}

// Advance scrolls the window so it shows the most recent samples once the
// buffer holds more than one window's worth. It never moves backward.
func (w *Window) Advance() {
	n := w.buf.Len()

	w.mu.Lock()
	defer w.mu.Unlock()

	if n > w.length {
		if next := n - w.length; next > w.start {
			w.start = next
		}
	}
}

// Bounds returns the current [start, end) range clamped to the buffer length.
func (w *Window) Bounds() (start, end int) {
	n := w.buf.Len()

	w.mu.Lock()
	start = w.start
	w.mu.Unlock()

	if start > n {
		start = n
	}
	end = start + w.length
	if end > n {
		end = n
	}
	return start, end
}

// Slice returns the samples inside the window for every channel.
func (w *Window) Slice() Snapshot {
	start, end := w.Bounds()
	return w.buf.Range(start, end)
}

// Reset moves the window back to the beginning. Used after the buffer is cleared.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.start = 0
}
