// Package playback holds the playback vocabulary shared by the scheduler and
// its observers.
package playback

import (
	"context"
	"time"
)

// MinRepeats is the fewest times a loop segment plays in a row.
const MinRepeats = 5

// Playback event types.
const (
	EventPlaythroughStarted  = "playthrough.started"
	EventSegmentQueued       = "segment.queued"
	EventPlaythroughFinished = "playthrough.finished"
)

// Event describes one step of a playthrough.
type Event struct {
	Type        string    `json:"type"`
	Playthrough string    `json:"playthrough"`
	Song        string    `json:"song"`
	Segment     string    `json:"segment,omitempty"`
	Repeats     int       `json:"repeats,omitempty"`
	Plan        []string  `json:"plan,omitempty"`
	Time        time.Time `json:"time"`
}

// Notifier receives playback events. Errors are logged and never stop playback.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}
