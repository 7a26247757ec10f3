package catalog

import (
	"sort"
	"strings"
)

// BuildTransitions computes the allowed next segments of every segment in
// song. The sets are derived from a snapshot of the segment ids taken before
// any change, and the song's segment map is swapped for the rebuilt one in a
// single assignment.
func BuildTransitions(song *Song) {
	snapshot := song.SegmentIDs()

	rebuilt := make(map[string]*Segment, len(snapshot))
	for _, id := range snapshot {
		seg := *song.Segments[id]
		seg.Transitions = transitionsFor(song, &seg, snapshot)
		rebuilt[id] = &seg
	}
	song.Segments = rebuilt
}

// CheckTransitions returns a *MissingTargetError for the first transition,
// in segment id order, that names a segment the song does not have. A song
// without its first loop fails here through start.
func CheckTransitions(song *Song) error {
	for _, id := range song.SegmentIDs() {
		for _, next := range song.Segments[id].Transitions {
			if _, ok := song.Segments[next]; !ok {
				return &MissingTargetError{SongID: song.ID, From: id, To: next}
			}
		}
	}
	return nil
}

func transitionsFor(song *Song, seg *Segment, snapshot []string) []string {
	var allowed []string

	switch {
	case seg.IsDedicatedTransition():
		target, _ := TransitionTarget(seg.ID)
		allowed = append(allowed, target)

	case song.HasMultipleLoops && seg.IsLoop():
		if song.HasEnd && song.HasGlobalEnding {
			allowed = append(allowed, EndID)
		}
		for _, other := range snapshot {
			switch {
			case song.HasDedicatedTransitions && IsDedicatedTransition(other):
				if strings.HasPrefix(other, seg.ID+"-to") {
					allowed = append(allowed, other)
				}
			case !song.HasGlobalEnding && other == seg.ID+"-end":
				allowed = append(allowed, other)
			case !song.HasDedicatedTransitions && IsLoop(other) && other != seg.ID:
				allowed = append(allowed, other)
			}
		}

	case seg.ID == StartID:
		if song.HasMultipleLoops {
			allowed = append(allowed, FirstLoopID)
		} else {
			allowed = append(allowed, LoopID)
		}

	case seg.ID == LoopID:
		if song.HasEnd && song.HasGlobalEnding {
			allowed = append(allowed, EndID)
		}
	}

	sort.Strings(allowed)
	return allowed
}
