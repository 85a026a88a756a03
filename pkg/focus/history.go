package focus

import "gonum.org/v1/gonum/stat"

// ring is a fixed-capacity buffer that overwrites its oldest value.
type ring[T any] struct {
	buf   []T
	start int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring[T]) Len() int { return r.size }

func (r *ring[T]) Cap() int { return len(r.buf) }

// Values returns the contents oldest first.
func (r *ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

func (r *ring[T]) Reset() {
	r.start, r.size = 0, 0
}

// history keeps the last few seconds of per-frame cues.
type history struct {
	ear       *ring[float64]
	openness  *ring[float64]
	deviation *ring[float64]
	blinks    *ring[int] // frame numbers at which blinks ended
}

func newHistory(cfg Config) *history {
	return &history{
		ear:       newRing[float64](cfg.HistoryFrames),
		openness:  newRing[float64](cfg.HistoryFrames),
		deviation: newRing[float64](cfg.HistoryFrames),
		blinks:    newRing[int](cfg.MaxBlinksPerWindow + 1),
	}
}

func (h *history) push(ear, openness, deviation float64) {
	h.ear.Push(ear)
	h.openness.Push(openness)
	h.deviation.Push(deviation)
}

// blinksSince counts recorded blinks at or after frame.
func (h *history) blinksSince(frame int) int {
	n := 0
	for _, f := range h.blinks.Values() {
		if f >= frame {
			n++
		}
	}
	return n
}

// meanOpenness returns the mean openness over the buffer, 1 when empty.
func (h *history) meanOpenness() float64 {
	if h.openness.Len() == 0 {
		return 1
	}
	return stat.Mean(h.openness.Values(), nil)
}

func (h *history) meanDeviation() float64 {
	if h.deviation.Len() == 0 {
		return 0
	}
	return stat.Mean(h.deviation.Values(), nil)
}
