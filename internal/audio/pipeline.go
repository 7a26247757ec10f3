package audio

import (
	"context"
	"time"
)

// Pipeline renders queued sources into 20ms PCM frames at real-time rate for
// network listeners.
type Pipeline struct {
	q       *Queue
	frameCh chan []int16
}

// NewPipeline creates a pipeline producing 48kHz stereo frames.
func NewPipeline() *Pipeline {
	return &Pipeline{
		q:       NewQueue(SampleRate),
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Append queues src after everything already queued.
func (p *Pipeline) Append(src Source) {
	p.q.Push(src)
}

// Wait blocks until every queued source has been rendered into frames.
func (p *Pipeline) Wait(ctx context.Context) error {
	return p.q.Wait(ctx)
}

// Close drops anything still queued.
func (p *Pipeline) Close() {
	p.q.Reset()
}

// QueueSize returns the number of sources queued, including the playing one.
func (p *Pipeline) QueueSize() int {
	_, _, n := p.q.Current()
	return n
}

// Status returns the label of the playing source and the position within it.
func (p *Pipeline) Status() (label string, position time.Duration) {
	label, played, _ := p.q.Current()
	return label, time.Duration(played) * time.Second / SampleRate
}

// Run starts the pipeline. Blocks until ctx is cancelled. While nothing is
// queued it emits silence so listeners stay connected.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	samples := make([][2]float64, FrameSize)
	for {
		p.q.Stream(samples)
		frame := ToPCM(samples, make([]int16, 0, FrameSamples))
		if !p.sendFrame(ctx, ticker, frame) {
			return
		}
	}
}

// sendFrame waits for the ticker then sends a frame. Returns false on cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
