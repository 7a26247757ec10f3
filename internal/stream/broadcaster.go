// Package stream serves the rendered PCM frames to network listeners over a
// raw WAV HTTP stream and over WebRTC.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// ListenerBuffer is the number of 20ms frames a listener may fall behind
// before frames are dropped for it (~3 seconds).
const ListenerBuffer = 150

// Transports a listener can subscribe through.
const (
	TransportHTTP   = "http"
	TransportWebRTC = "webrtc"
)

// Listener is one subscriber of the frame fan-out.
type Listener struct {
	C         chan []int16 // 20ms PCM frames, shared with other listeners: read only
	Transport string

	done    chan struct{}
	stop    sync.Once
	dropped atomic.Uint64
}

// Done is closed when the listener is unsubscribed or the broadcast ends.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Dropped returns the number of frames skipped because the listener was full.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *Listener) release() {
	l.stop.Do(func() { close(l.done) })
}

// Stats summarizes the fan-out.
type Stats struct {
	Frames    uint64         `json:"frames"`
	Dropped   uint64         `json:"dropped"`
	Listeners map[string]int `json:"listeners"` // by transport
}

// Broadcaster fans the pipeline's frames out to every listener. A slow
// listener loses frames instead of holding back the others.
type Broadcaster struct {
	mu    sync.Mutex // serializes membership changes
	ended bool
	// set is replaced, never mutated, so Run can read it without the lock.
	set atomic.Pointer[[]*Listener]

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{}
	b.set.Store(&[]*Listener{})
	return b
}

func (b *Broadcaster) listeners() []*Listener {
	return *b.set.Load()
}

// Subscribe adds a listener for the given transport. Once the broadcast has
// ended the returned listener is already done.
func (b *Broadcaster) Subscribe(transport string) *Listener {
	l := &Listener{
		C:         make(chan []int16, ListenerBuffer),
		Transport: transport,
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		l.release()
		return l
	}
	cur := b.listeners()
	next := make([]*Listener, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, l)
	b.set.Store(&next)
	return l
}

// Unsubscribe removes l and closes its Done channel. Calling it again is a no-op.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	cur := b.listeners()
	next := make([]*Listener, 0, len(cur))
	for _, other := range cur {
		if other != l {
			next = append(next, other)
		}
	}
	if len(next) != len(cur) {
		b.set.Store(&next)
	}
	b.mu.Unlock()
	l.release()
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	return len(b.listeners())
}

// Frames returns the number of frames broadcast so far.
func (b *Broadcaster) Frames() uint64 {
	return b.frames.Load()
}

// Stats returns the frame counters and the listeners per transport.
func (b *Broadcaster) Stats() Stats {
	st := Stats{
		Frames:    b.frames.Load(),
		Dropped:   b.dropped.Load(),
		Listeners: make(map[string]int),
	}
	for _, l := range b.listeners() {
		st.Listeners[l.Transport]++
	}
	return st
}

// Run delivers every frame from source to the current listeners until ctx is
// cancelled or source is closed. When it returns every listener is released
// and later subscribers are turned away.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	defer b.end()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			for _, l := range b.listeners() {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
					b.dropped.Add(1)
				}
			}
		}
	}
}

func (b *Broadcaster) end() {
	b.mu.Lock()
	b.ended = true
	gone := b.listeners()
	b.set.Store(&[]*Listener{})
	b.mu.Unlock()

	for _, l := range gone {
		l.release()
	}
}
