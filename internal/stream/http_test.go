package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/loopdj/internal/audio"
	"github.com/satindergrewal/loopdj/internal/autodj"
)

// --- WAV stream ---

func TestWAVHeader(t *testing.T) {
	h := WAVHeader()
	if len(h) != 44 {
		t.Fatalf("header length = %d, want 44", len(h))
	}
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" || string(h[36:40]) != "data" {
		t.Errorf("header chunk ids = %q %q %q", h[0:4], h[8:12], h[36:40])
	}
	if got := binary.LittleEndian.Uint16(h[22:]); got != audio.Channels {
		t.Errorf("channels = %d, want %d", got, audio.Channels)
	}
	if got := binary.LittleEndian.Uint32(h[24:]); got != audio.SampleRate {
		t.Errorf("sample rate = %d, want %d", got, audio.SampleRate)
	}
	if got := binary.LittleEndian.Uint32(h[28:]); got != audio.SampleRate*4 {
		t.Errorf("byte rate = %d, want %d", got, audio.SampleRate*4)
	}
	if got := binary.LittleEndian.Uint16(h[34:]); got != audio.BitDepth {
		t.Errorf("bit depth = %d, want %d", got, audio.BitDepth)
	}
}

func TestHTTPStreamsFrames(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := make(chan []int16, 10)
	go b.Run(ctx, source)

	srv := httptest.NewServer(NewHTTPHandler(b, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", ct)
	}

	header := make([]byte, 44)
	if _, err := io.ReadFull(resp.Body, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !bytes.Equal(header, WAVHeader()) {
		t.Error("stream does not start with the WAV header")
	}

	// the listener subscribes before the header is written
	source <- []int16{256, -1}
	body := make([]byte, 4)
	if _, err := io.ReadFull(resp.Body, body); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if want := []byte{0x00, 0x01, 0xff, 0xff}; !bytes.Equal(body, want) {
		t.Errorf("frame bytes = %x, want %x", body, want)
	}
}

func TestHTTPUnsubscribesOnDisconnect(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(NewHTTPHandler(b, zerolog.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	io.ReadFull(resp.Body, make([]byte, 44))
	if b.ListenerCount() != 1 {
		t.Errorf("ListenerCount = %d, want 1", b.ListenerCount())
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.ListenerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("listener still subscribed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// --- Status ---

type fixedDJ autodj.SchedulerStatus

func (d fixedDJ) Status() autodj.SchedulerStatus { return autodj.SchedulerStatus(d) }

type fixedPlayer struct {
	label string
	pos   time.Duration
}

func (p fixedPlayer) Status() (string, time.Duration) { return p.label, p.pos }

func TestStatusHandler(t *testing.T) {
	dj := fixedDJ{Song: "next", Segment: "end", Playthrough: "abc", Plan: []string{"start", "loop", "end"}, Songs: 4}
	b := NewBroadcaster()
	l := b.Subscribe(TransportHTTP)
	defer b.Unsubscribe(l)

	h := NewStatusHandler(dj, fixedPlayer{label: "current/loop", pos: 1500 * time.Millisecond}, b, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	var got Status
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Song != "current" || got.Segment != "loop" {
		t.Errorf("now playing = %s/%s, want current/loop", got.Song, got.Segment)
	}
	if got.Position != 1.5 {
		t.Errorf("Position = %v, want 1.5", got.Position)
	}
	if got.Listeners != 1 || got.Songs != 4 || got.Playthrough != "abc" {
		t.Errorf("status = %+v", got)
	}
	if got.Broadcast == nil || got.Broadcast.Listeners[TransportHTTP] != 1 {
		t.Errorf("Broadcast = %+v, want one http listener", got.Broadcast)
	}
}

func TestStatusHandlerWithoutPlayer(t *testing.T) {
	h := NewStatusHandler(fixedDJ{Song: "a", Segment: "start"}, nil, nil, nil)
	got := h.Status()
	if got.Song != "a" || got.Segment != "start" || got.Listeners != 0 || got.Broadcast != nil {
		t.Errorf("status = %+v, want scheduler state only", got)
	}
}

func TestStatusHandlerRejectsPost(t *testing.T) {
	h := NewStatusHandler(fixedDJ{}, nil, nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status code = %d, want 405", rec.Code)
	}
}
