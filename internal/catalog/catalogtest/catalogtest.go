// Package catalogtest generates song file inventories for tests.
package catalogtest

import (
	"fmt"
	"math/rand/v2"
)

// SongOptions shapes a generated song.
type SongOptions struct {
	ID       string
	MaxLoops int // upper bound for the loop count, at least 1
	HasEnd   bool
	// Transitions adds dedicated loop-to-loop transitions. Loops left without
	// a transition are dead ends, so songs with transitions always end on a
	// global end.
	Transitions bool
}

// Song returns file names for a random song: a start, one literal loop or
// loop0..loopN, optional dedicated transitions and an optional ending.
func Song(rng *rand.Rand, opts SongOptions) []string {
	id := opts.ID
	if id == "" {
		id = "song"
	}
	maxLoops := max(opts.MaxLoops, 1)
	loopCount := 1 + rng.IntN(maxLoops)

	ids := []string{"start"}
	if loopCount == 1 {
		ids = append(ids, "loop")
	} else {
		for i := range loopCount {
			ids = append(ids, fmt.Sprintf("loop%d", i))
		}
	}

	transitions := 0
	if opts.Transitions && loopCount > 1 {
		want := 1 + rng.IntN(loopCount*(loopCount-1))
	outer:
		for from := range loopCount {
			for to := range loopCount {
				if from == to {
					continue
				}
				ids = append(ids, fmt.Sprintf("loop%d-to-%d", from, to))
				transitions++
				if transitions >= want {
					break outer
				}
			}
		}
	}

	if opts.HasEnd {
		global := transitions > 0 || loopCount == 1 || rng.IntN(2) == 0
		if global {
			ids = append(ids, "end")
		} else {
			ids = append(ids, fmt.Sprintf("loop%d-end", loopCount-1))
		}
	}

	formats := []string{"ogg", "wav", "flac", "mp3"}
	names := make([]string, len(ids))
	for i, seg := range ids {
		names[i] = fmt.Sprintf("%s_%s.%s", id, seg, formats[rng.IntN(len(formats))])
	}
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	return names
}
