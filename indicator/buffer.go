package indicator

// Buffer keeps a rolling window of recent values with append-and-evict
// semantics. Length never exceeds the configured capacity.
type Buffer struct {
	max int
	buf []float64
}

func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 16
	}
	return &Buffer{max: max, buf: make([]float64, 0, max)}
}

func (b *Buffer) Push(v float64) {
	b.buf = append(b.buf, v)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
}

func (b *Buffer) Len() int { return len(b.buf) }

func (b *Buffer) Full() bool { return len(b.buf) == b.max }

func (b *Buffer) Values() []float64 {
	out := make([]float64, len(b.buf))
	copy(out, b.buf)
	return out
}

// MaxExcludingLast returns the highest of the n values preceding the newest
// entry. The newest entry itself is excluded, matching the breakout-channel
// convention of "up to but not including the current bar".
func (b *Buffer) MaxExcludingLast(n int) float64 {
	lo, hi := b.window(n)
	if lo < 0 {
		return 0
	}
	max := b.buf[lo]
	for _, v := range b.buf[lo+1 : hi] {
		if v > max {
			max = v
		}
	}
	return max
}

// MinExcludingLast mirrors MaxExcludingLast for channel lows.
func (b *Buffer) MinExcludingLast(n int) float64 {
	lo, hi := b.window(n)
	if lo < 0 {
		return 0
	}
	min := b.buf[lo]
	for _, v := range b.buf[lo+1 : hi] {
		if v < min {
			min = v
		}
	}
	return min
}

// window returns the [lo,hi) span covering the n entries that precede the
// newest one, or lo=-1 when not enough history exists.
func (b *Buffer) window(n int) (int, int) {
	hi := len(b.buf) - 1
	lo := hi - n + 1
	if n <= 0 || lo < 0 || hi <= lo {
		return -1, -1
	}
	return lo, hi
}
