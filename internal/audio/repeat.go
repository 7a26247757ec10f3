package audio

import "github.com/gopxl/beep/v2"

// Repeater plays a decoded buffer a fixed number of times. Every pass reads
// the same in-memory samples; nothing is read or decoded again.
type Repeater struct {
	buf       *beep.Buffer
	inner     beep.StreamSeeker
	count     int
	remaining int // passes left, including the one in progress
}

// Repeat returns a streamer that plays buf count times. A count below 1
// plays it once.
func Repeat(buf *beep.Buffer, count int) *Repeater {
	count = max(count, 1)
	return &Repeater{
		buf:       buf,
		inner:     buf.Streamer(0, buf.Len()),
		count:     count,
		remaining: count,
	}
}

// Stream implements beep.Streamer.
func (r *Repeater) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) && r.remaining > 0 {
		m, innerOK := r.inner.Stream(samples[n:])
		n += m
		if innerOK && m > 0 {
			continue
		}
		r.remaining--
		if r.remaining > 0 {
			r.inner = r.buf.Streamer(0, r.buf.Len())
		}
	}
	return n, n > 0
}

// Err implements beep.Streamer.
func (r *Repeater) Err() error {
	return r.inner.Err()
}

// Format reports the sample format of the repeated buffer. Every pass shares
// one buffer, so the format is the same on both sides of a loop boundary.
func (r *Repeater) Format() beep.Format {
	return r.buf.Format()
}

// Len returns the total number of frames over all passes.
func (r *Repeater) Len() int {
	return r.buf.Len() * r.count
}

// Remaining returns the passes left, including the one in progress.
func (r *Repeater) Remaining() int {
	return r.remaining
}

// Clone returns a repeater sharing the decoded buffer, starting at the same
// cursor and pass but advancing independently.
func (r *Repeater) Clone() *Repeater {
	inner := r.buf.Streamer(0, r.buf.Len())
	if err := inner.Seek(r.inner.Position()); err != nil {
		inner = r.buf.Streamer(0, r.buf.Len())
	}
	return &Repeater{
		buf:       r.buf,
		inner:     inner,
		count:     r.count,
		remaining: r.remaining,
	}
}
