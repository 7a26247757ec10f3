// Package speaker plays queued sources on the local output device. It is the
// only package that needs the platform audio libraries.
package speaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/satindergrewal/loopdj/internal/audio"
)

// SampleRate is the rate the output device is opened at.
const SampleRate = beep.SampleRate(44100)

// BufferSize is the latency of the output device.
const BufferSize = 100 * time.Millisecond

// ErrNoOutputDevice is returned when no audio output can be opened.
var ErrNoOutputDevice = errors.New("no output device is available")

// Sink plays sources on the default output device.
type Sink struct {
	q *audio.Queue
}

// NewSink opens the default output device.
func NewSink() (*Sink, error) {
	if err := speaker.Init(SampleRate, SampleRate.N(BufferSize)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOutputDevice, err)
	}
	s := &Sink{q: audio.NewQueue(SampleRate)}
	speaker.Play(s.q)
	return s, nil
}

// Append queues src after everything already queued.
func (s *Sink) Append(src audio.Source) {
	s.q.Push(src)
}

// Wait blocks until the speaker has played everything queued.
func (s *Sink) Wait(ctx context.Context) error {
	return s.q.Wait(ctx)
}

// Close stops playback and releases the device.
func (s *Sink) Close() {
	s.q.Reset()
	speaker.Clear()
	speaker.Close()
}
