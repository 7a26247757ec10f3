package audio

import "github.com/gopxl/beep/v2"

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// FadeOut streams at most frames samples of s, fading from full gain to
// silence along the smoothstep curve.
func FadeOut(s beep.Streamer, frames int) beep.Streamer {
	return &fadeOut{s: s, frames: frames}
}

type fadeOut struct {
	s      beep.Streamer
	pos    int
	frames int
}

func (f *fadeOut) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= f.frames {
		return 0, false
	}
	if rest := f.frames - f.pos; len(samples) > rest {
		samples = samples[:rest]
	}
	n, ok := f.s.Stream(samples)
	for i := range n {
		gain := 1 - Smoothstep(float64(f.pos+i)/float64(f.frames))
		samples[i][0] *= gain
		samples[i][1] *= gain
	}
	f.pos += n
	return n, ok
}

func (f *fadeOut) Err() error { return f.s.Err() }
