// Package audio decodes song segments and queues them for gapless playback,
// either on a speaker (see package speaker) or through a real-time PCM frame
// pipeline.
package audio

import (
	"context"
	"time"

	"github.com/gopxl/beep/v2"
)

// Network stream format.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Source is one piece of audio queued on a sink.
type Source struct {
	Label    string // song/segment, for status and logs
	Streamer beep.Streamer
	Format   beep.Format
}

// Sink plays appended sources back to back without gaps.
type Sink interface {
	Append(src Source)
	// Wait blocks until every appended source has finished playing.
	Wait(ctx context.Context) error
	Close()
}
