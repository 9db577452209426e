package focus

// window is a fixed-size ring of the most recent values.
type window[T any] struct {
	buf  []T
	next int
	n    int
}

func newWindow[T any](size int) *window[T] {
	return &window[T]{buf: make([]T, size)}
}

// push appends v and returns the value it displaced, if any.
func (w *window[T]) push(v T) (evicted T, ok bool) {
	if w.n == len(w.buf) {
		evicted, ok = w.buf[w.next], true
	} else {
		w.n++
	}
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	return evicted, ok
}

func (w *window[T]) len() int {
	return w.n
}
