package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
)

const resampleQuality = 4

// Queue plays sources back to back and streams silence while empty, so the
// consumer pulling from it never runs dry.
type Queue struct {
	rate beep.SampleRate

	mu      sync.Mutex
	items   []Source
	played  int // frames of items[0] streamed so far
	drained chan struct{}
	err     error
}

// NewQueue returns an empty queue that streams at rate.
func NewQueue(rate beep.SampleRate) *Queue {
	return &Queue{rate: rate}
}

// Push queues src after everything already queued, resampling it to the queue rate.
func (q *Queue) Push(src Source) {
	if src.Format.SampleRate != 0 && src.Format.SampleRate != q.rate {
		src.Streamer = beep.Resample(resampleQuality, src.Format.SampleRate, q.rate, src.Streamer)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, src)
	if q.drained == nil {
		q.drained = make(chan struct{})
	}
}

// Stream implements beep.Streamer. It always fills samples.
func (q *Queue) Stream(samples [][2]float64) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	filled := 0
	for filled < len(samples) && len(q.items) > 0 {
		head := q.items[0]
		n, ok := head.Streamer.Stream(samples[filled:])
		filled += n
		q.played += n
		if ok && n > 0 {
			continue
		}
		if err := head.Streamer.Err(); err != nil && q.err == nil {
			q.err = fmt.Errorf("play %s: %w", head.Label, err)
		}
		q.items = q.items[1:]
		q.played = 0
	}
	if len(q.items) == 0 {
		q.markDrained()
	}
	clear(samples[filled:])
	return len(samples), true
}

func (q *Queue) Err() error {
	return nil
}

// Wait blocks until the queue is empty and returns the first playback error.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	ch := q.drained
	q.mu.Unlock()

	if ch != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

// Reset drops everything queued and releases waiters.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.played = 0
	q.markDrained()
}

// Current returns the label of the playing source and the frames played.
func (q *Queue) Current() (string, int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", 0, 0
	}
	return q.items[0].Label, q.played, len(q.items)
}

// markDrained must be called with mu held.
func (q *Queue) markDrained() {
	if q.drained != nil {
		close(q.drained)
		q.drained = nil
	}
}
