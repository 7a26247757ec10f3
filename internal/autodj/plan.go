package autodj

import (
	"errors"
	"fmt"
	"strings"

	"github.com/satindergrewal/loopdj/internal/catalog"
)

// MaxPlanSteps bounds the planner walk. A plan still growing after this many
// steps means the song's graph loops without ever satisfying the length policy.
const MaxPlanSteps = 100

// Length thresholds after which the planner starts wrapping up a playthrough.
const (
	endingPlanLength  = 7 // songs with an ending
	endlessPlanLength = 4 // songs without one
)

// ErrPlanTooLong is returned when the planner exceeds MaxPlanSteps.
var ErrPlanTooLong = errors.New("plan exceeded step limit")

// MissingSegmentError reports a transition to a segment the song does not have.
type MissingSegmentError struct {
	SongID    string
	SegmentID string
}

func (e *MissingSegmentError) Error() string {
	return fmt.Sprintf("song %s: transition to missing segment %s", e.SongID, e.SegmentID)
}

// Rand is the random source the planner draws from. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	IntN(n int) int
}

// Plan is one playthrough: segments in playing order, starting with start.
type Plan []*catalog.Segment

// IDs returns the segment ids of p in order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p))
	for i, seg := range p {
		ids[i] = seg.ID
	}
	return ids
}

// Last returns the final segment of the plan.
func (p Plan) Last() *catalog.Segment {
	return p[len(p)-1]
}

// MakePlan walks song's transition graph from start, choosing uniformly
// among allowed transitions, until it reaches an ending, a dead end, or the
// length policy says the playthrough is long enough.
func MakePlan(song *catalog.Song, rng Rand) (Plan, error) {
	start, ok := song.Segment(catalog.StartID)
	if !ok {
		return nil, fmt.Errorf("song %s: %w", song.ID, catalog.ErrMissingStart)
	}

	var ends []string
	for _, id := range song.SegmentIDs() {
		if catalog.IsEnd(id) {
			ends = append(ends, id)
		}
	}

	plan := Plan{start}
	for range MaxPlanSteps {
		candidates := plan.Last().Transitions
		if song.HasEnd && longEnough(song, plan) {
			candidates = preferEnding(candidates, ends)
		}
		if len(candidates) == 0 {
			return plan, nil
		}

		id := candidates[rng.IntN(len(candidates))]
		next, ok := song.Segment(id)
		if !ok {
			return nil, &MissingSegmentError{SongID: song.ID, SegmentID: id}
		}
		plan = append(plan, next)

		if next.IsEnd() {
			return plan, nil
		}
		if !longEnough(song, plan) {
			continue
		}
		switch {
		case song.HasDedicatedTransitions && next.IsDedicatedTransition():
			// resolve into the target loop first
		case song.HasEnd && song.HasGlobalEnding:
			end, ok := song.Segment(catalog.EndID)
			if !ok {
				return nil, &MissingSegmentError{SongID: song.ID, SegmentID: catalog.EndID}
			}
			return append(plan, end), nil
		case !song.HasEnd:
			return plan, nil
		}
	}
	return nil, fmt.Errorf("song %s: %w", song.ID, ErrPlanTooLong)
}

func longEnough(song *catalog.Song, plan Plan) bool {
	if song.HasEnd {
		return len(plan) > endingPlanLength
	}
	return len(plan) > endlessPlanLength
}

// preferEnding narrows candidates to endings, then to segments that lead to a
// per-loop ending. It returns candidates unchanged when neither matches.
func preferEnding(candidates, ends []string) []string {
	var endings, leading []string
	for _, c := range candidates {
		if catalog.IsEnd(c) {
			endings = append(endings, c)
			continue
		}
		for _, e := range ends {
			if strings.HasPrefix(e, c) {
				leading = append(leading, c)
				break
			}
		}
	}
	switch {
	case len(endings) > 0:
		return endings
	case len(leading) > 0:
		return leading
	}
	return candidates
}
