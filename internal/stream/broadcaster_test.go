package stream

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/satindergrewal/loopdj/internal/audio"
)

// tone streams n frames at a constant level.
type tone struct {
	n     int
	level float64
}

func (s *tone) Stream(samples [][2]float64) (int, bool) {
	if s.n <= 0 {
		return 0, false
	}
	n := min(len(samples), s.n)
	for i := range samples[:n] {
		samples[i] = [2]float64{s.level, -s.level}
	}
	s.n -= n
	return n, true
}

func (s *tone) Err() error { return nil }

func released(t *testing.T, l *Listener) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatalf("%s listener was not released", l.Transport)
	}
}

func TestBroadcastPipelineFrames(t *testing.T) {
	p := audio.NewPipeline()
	p.Append(audio.Source{
		Label:    "song/loop",
		Streamer: &tone{n: 2 * audio.FrameSize, level: 0.5},
		Format:   beep.Format{SampleRate: audio.SampleRate, NumChannels: audio.Channels, Precision: 2},
	})

	b := NewBroadcaster()
	httpL := b.Subscribe(TransportHTTP)
	rtcL := b.Subscribe(TransportWebRTC)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	go b.Run(ctx, p.Frames())

	for _, l := range []*Listener{httpL, rtcL} {
		for i := range 2 {
			select {
			case frame := <-l.C:
				if len(frame) != audio.FrameSamples {
					t.Fatalf("%s frame %d has %d samples, want %d", l.Transport, i, len(frame), audio.FrameSamples)
				}
				if frame[0] != 16383 || frame[1] != -16383 || frame[len(frame)-2] != 16383 {
					t.Errorf("%s frame %d = [%d %d ... %d], want the tone level", l.Transport, i, frame[0], frame[1], frame[len(frame)-2])
				}
			case <-time.After(time.Second):
				t.Fatalf("%s listener got no frame %d", l.Transport, i)
			}
		}
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	if err := p.Wait(waitCtx); err != nil {
		t.Fatalf("pipeline Wait: %v", err)
	}

	cancel()
	released(t, httpL)
	released(t, rtcL)
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d after the broadcast ended, want 0", b.ListenerCount())
	}
}

func TestBroadcastDropAccounting(t *testing.T) {
	const extra = 25
	b := NewBroadcaster()
	slow := b.Subscribe(TransportWebRTC)

	source := make(chan []int16, ListenerBuffer+extra)
	for i := range ListenerBuffer + extra {
		source <- []int16{int16(i)}
	}
	close(source)
	b.Run(context.Background(), source)

	if got := len(slow.C); got != ListenerBuffer {
		t.Errorf("buffered frames = %d, want %d", got, ListenerBuffer)
	}
	if got := slow.Dropped(); got != extra {
		t.Errorf("Dropped() = %d, want %d", got, extra)
	}
	if first := <-slow.C; first[0] != 0 {
		t.Errorf("oldest buffered frame = %d, want 0: the newest frames are the ones dropped", first[0])
	}

	st := b.Stats()
	if st.Frames != ListenerBuffer+extra || st.Dropped != extra {
		t.Errorf("Stats = %+v, want %d frames and %d dropped", st, ListenerBuffer+extra, extra)
	}
	if b.Frames() != st.Frames {
		t.Errorf("Frames() = %d, want %d", b.Frames(), st.Frames)
	}
	released(t, slow)
}

func TestBroadcastStatsByTransport(t *testing.T) {
	b := NewBroadcaster()
	a := b.Subscribe(TransportHTTP)
	b.Subscribe(TransportHTTP)
	b.Subscribe(TransportWebRTC)

	want := map[string]int{TransportHTTP: 2, TransportWebRTC: 1}
	if got := b.Stats().Listeners; !reflect.DeepEqual(got, want) {
		t.Errorf("Listeners = %v, want %v", got, want)
	}

	b.Unsubscribe(a)
	b.Unsubscribe(a)
	released(t, a)
	want = map[string]int{TransportHTTP: 1, TransportWebRTC: 1}
	if got := b.Stats().Listeners; !reflect.DeepEqual(got, want) {
		t.Errorf("after a second Unsubscribe Listeners = %v, want %v", got, want)
	}
	if b.ListenerCount() != 2 {
		t.Errorf("ListenerCount = %d, want 2", b.ListenerCount())
	}
}

func TestBroadcastEndTurnsAwaySubscribers(t *testing.T) {
	b := NewBroadcaster()
	source := make(chan []int16)
	close(source)
	b.Run(context.Background(), source)

	l := b.Subscribe(TransportHTTP)
	released(t, l)
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0 after the broadcast ended", b.ListenerCount())
	}
	b.Unsubscribe(l)
}

func TestBroadcastStopsOnCancel(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe(TransportWebRTC)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx, make(chan []int16))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	released(t, l)
}
