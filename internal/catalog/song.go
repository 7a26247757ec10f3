package catalog

import (
	"io"
	"os"
	"sort"
)

// Song is every segment discovered under one song id, plus the flags derived
// from the shape of its segment set.
type Song struct {
	ID       string
	Segments map[string]*Segment

	HasEnd                  bool
	HasGlobalEnding         bool
	HasMultipleLoops        bool
	HasDedicatedTransitions bool

	// Archive is the zip that contributed segments to the song, if any. Plain
	// segment files of the same song may sit next to it.
	Archive string

	opener Opener
}

func newSong(id string) *Song {
	return &Song{ID: id, Segments: make(map[string]*Segment)}
}

// IsArchive reports whether any of the song's segments live inside a zip.
func (s *Song) IsArchive() bool {
	return s.Archive != ""
}

// Segment returns the segment with the given id.
func (s *Song) Segment(id string) (*Segment, bool) {
	seg, ok := s.Segments[id]
	return seg, ok
}

// SegmentIDs returns the song's segment ids, sorted.
func (s *Song) SegmentIDs() []string {
	ids := make([]string, 0, len(s.Segments))
	for id := range s.Segments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// add inserts seg, updating the incremental song flags.
func (s *Song) add(seg *Segment) error {
	if _, ok := s.Segments[seg.ID]; ok {
		return &DuplicateSegmentError{SongID: s.ID, SegmentID: seg.ID}
	}
	if seg.IsEnd() {
		s.HasEnd = true
	}
	if seg.Kind == KindNumberedLoop {
		s.HasMultipleLoops = true
	}
	if seg.Kind == KindTransition {
		s.HasDedicatedTransitions = true
	}
	s.Segments[seg.ID] = seg
	return nil
}

// finalize derives the flags that depend on the complete segment set.
func (s *Song) finalize() {
	_, s.HasGlobalEnding = s.Segments[EndID]
}

// Open returns the raw bytes of seg, read from its file or from the song archive.
func (s *Song) Open(seg *Segment) (io.ReadCloser, error) {
	if s.opener != nil {
		return s.opener.Open(s, seg)
	}
	return defaultOpener.Open(s, seg)
}

// Opener reads the encoded bytes of a segment.
type Opener interface {
	Open(song *Song, seg *Segment) (io.ReadCloser, error)
}

// FileOpener reads plain segment files from disk and archive entries through
// the zip reader.
type FileOpener struct{}

var defaultOpener Opener = FileOpener{}

func (FileOpener) Open(_ *Song, seg *Segment) (io.ReadCloser, error) {
	if seg.Entry != "" {
		return openArchiveEntry(seg.Path, seg.Entry)
	}
	return os.Open(seg.Path)
}
