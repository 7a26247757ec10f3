package stream

import (
	"encoding/binary"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/loopdj/internal/audio"
)

// unknownLength fills the RIFF and data sizes of a stream with no end.
const unknownLength = 0xFFFFFFFF

// HTTPHandler serves the broadcast as an endless 16-bit PCM WAV stream.
type HTTPHandler struct {
	broadcaster *Broadcaster
	logger      zerolog.Logger
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, logger: logger}
}

// WAVHeader returns a 44-byte header for a stereo 48kHz stream of unknown length.
func WAVHeader() []byte {
	const blockAlign = audio.Channels * audio.BitDepth / 8
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], unknownLength)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:], audio.Channels)
	binary.LittleEndian.PutUint32(h[24:], audio.SampleRate)
	binary.LittleEndian.PutUint32(h[28:], audio.SampleRate*blockAlign)
	binary.LittleEndian.PutUint16(h[32:], blockAlign)
	binary.LittleEndian.PutUint16(h[34:], audio.BitDepth)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], unknownLength)
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "loopdj")

	if r.Method == http.MethodHead {
		return
	}

	listener := h.broadcaster.Subscribe(TransportHTTP)
	defer h.broadcaster.Unsubscribe(listener)

	h.logger.Info().Str("remote", r.RemoteAddr).Int("listeners", h.broadcaster.ListenerCount()).Msg("HTTP listener connected")
	defer func() {
		h.logger.Info().Str("remote", r.RemoteAddr).Uint64("dropped", listener.Dropped()).Msg("HTTP listener disconnected")
	}()

	if _, err := w.Write(WAVHeader()); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
