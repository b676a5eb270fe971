package temperature

import "time"

// WindowSize retains about 24h of samples at the default 5 minute cadence.
const WindowSize = 288

type Reading struct {
	LocationID string
	At         time.Time
	Value      float64
}

// Window is a fixed-size FIFO of readings for one location. It is not safe
// for concurrent use; the monitor guards it.
type Window struct {
	buf   []Reading
	start int
	size  int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = WindowSize
	}
	return &Window{buf: make([]Reading, capacity)}
}

// Append adds a reading, evicting the oldest one when full.
func (w *Window) Append(r Reading) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = r
		w.size++
		return
	}
	w.buf[w.start] = r
	w.start = (w.start + 1) % len(w.buf)
}

func (w *Window) Len() int {
	return w.size
}

func (w *Window) Cap() int {
	return len(w.buf)
}

// Readings returns a copy, oldest first.
func (w *Window) Readings() []Reading {
	out := make([]Reading, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

func (w *Window) Latest() (Reading, bool) {
	if w.size == 0 {
		return Reading{}, false
	}
	return w.buf[(w.start+w.size-1)%len(w.buf)], true
}
