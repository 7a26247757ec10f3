package playback

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"
	"time"
)

func TestEventJSON(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		ev   Event
		keys []string
	}{
		{"started", Event{Type: EventPlaythroughStarted, Playthrough: "p", Song: "s", Plan: []string{"start", "loop"}, Time: ts}, []string{"plan", "playthrough", "song", "time", "type"}},
		{"queued", Event{Type: EventSegmentQueued, Playthrough: "p", Song: "s", Segment: "loop", Repeats: MinRepeats, Time: ts}, []string{"playthrough", "repeats", "segment", "song", "time", "type"}},
		{"finished", Event{Type: EventPlaythroughFinished, Playthrough: "p", Song: "s", Time: ts}, []string{"playthrough", "song", "time", "type"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatal(err)
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatal(err)
			}
			var keys []string
			for k := range fields {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			if !reflect.DeepEqual(keys, tt.keys) {
				t.Errorf("keys = %v, want %v", keys, tt.keys)
			}
			if fields["type"] != tt.ev.Type {
				t.Errorf("type = %v, want %s", fields["type"], tt.ev.Type)
			}
		})
	}
}
