// Package window provides a fixed-capacity, most-recent-first sample window.
package window

// Window holds up to a fixed number of float64 samples. Pushing prepends in
// O(1); once full, the oldest sample is evicted. Not safe for concurrent
// use; every window has a single owning goroutine.
type Window struct {
	buf  []float64
	head int
	n    int
}

// New creates a window with the given capacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		panic("window: capacity must be positive")
	}
	return &Window{buf: make([]float64, capacity)}
}

// Push inserts a sample at the front, evicting the oldest when full.
func (w *Window) Push(v float64) {
	w.head--
	if w.head < 0 {
		w.head = len(w.buf) - 1
	}
	w.buf[w.head] = v
	if w.n < len(w.buf) {
		w.n++
	}
}

// Len returns the number of samples held.
func (w *Window) Len() int { return w.n }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Values returns the samples most-recent-first as a fresh slice.
func (w *Window) Values() []float64 {
	out := make([]float64, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Latest returns the most recent sample, or 0 when empty.
func (w *Window) Latest() float64 {
	if w.n == 0 {
		return 0
	}
	return w.buf[w.head]
}
