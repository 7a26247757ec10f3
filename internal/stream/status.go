package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/satindergrewal/loopdj/internal/autodj"
)

// DJ reports what the scheduler is playing.
type DJ interface {
	Status() autodj.SchedulerStatus
}

// Player reports what the sink is rendering right now.
type Player interface {
	Status() (label string, position time.Duration)
}

// Status is the body of /api/status.
type Status struct {
	Song        string   `json:"song"`
	Segment     string   `json:"segment"`
	Playthrough string   `json:"playthrough"`
	Plan        []string `json:"plan"`
	Songs       int      `json:"songs"`
	Position    float64  `json:"position"` // seconds into the playing segment
	Listeners   int      `json:"listeners"`
	Peers       int      `json:"peers"`
	Broadcast   *Stats   `json:"broadcast,omitempty"`
}

// StatusHandler serves the now-playing state as JSON.
type StatusHandler struct {
	dj          DJ
	player      Player
	broadcaster *Broadcaster
	webrtc      *WebRTCHandler
}

// NewStatusHandler creates a status handler. player, b and rtc may be nil.
func NewStatusHandler(dj DJ, player Player, b *Broadcaster, rtc *WebRTCHandler) *StatusHandler {
	return &StatusHandler{dj: dj, player: player, broadcaster: b, webrtc: rtc}
}

// Status collects the current state.
func (h *StatusHandler) Status() Status {
	st := h.dj.Status()
	out := Status{
		Song:        st.Song,
		Segment:     st.Segment,
		Playthrough: st.Playthrough,
		Plan:        st.Plan,
		Songs:       st.Songs,
	}
	if h.player != nil {
		// The sink plays behind the scheduler, which queues a whole plan ahead.
		label, pos := h.player.Status()
		if song, seg, ok := strings.Cut(label, "/"); ok {
			out.Song, out.Segment = song, seg
		}
		out.Position = pos.Seconds()
	}
	if h.broadcaster != nil {
		st := h.broadcaster.Stats()
		out.Broadcast = &st
		for _, n := range st.Listeners {
			out.Listeners += n
		}
	}
	if h.webrtc != nil {
		out.Peers = h.webrtc.PeerCount()
	}
	return out
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(h.Status())
}
