// Package catalog discovers songs in a songs directory, classifies their
// segment files and builds the per-song transition graph the planner walks.
package catalog

import (
	"path"
	"regexp"
	"strings"
)

var (
	loopPattern       = regexp.MustCompile(`loop(\d+)?$`)
	transitionPattern = regexp.MustCompile(`loop(\d+)-to-(\d+)`)
)

// Segment ids with a fixed meaning.
const (
	StartID = "start"
	EndID   = "end"
	LoopID  = "loop"
	// FirstLoopID is where start leads when a song has numbered loops.
	FirstLoopID = "loop0"
)

// Kind is the semantic category of a segment id.
type Kind int

const (
	KindOther Kind = iota
	KindStart
	KindLoop         // literally "loop"
	KindNumberedLoop // loop<N>
	KindTransition   // loop<F>-to-<T>
	KindEnd          // literally "end"
	KindLoopEnd      // loop<N>-end
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindLoop:
		return "loop"
	case KindNumberedLoop:
		return "numbered-loop"
	case KindTransition:
		return "transition"
	case KindEnd:
		return "end"
	case KindLoopEnd:
		return "loop-end"
	default:
		return "other"
	}
}

// IsDedicatedTransition reports whether id contains loop<F>-to-<T>.
func IsDedicatedTransition(id string) bool {
	return transitionPattern.MatchString(id)
}

// IsLoop reports whether id ends in loop or loop<N> and is not a dedicated transition.
func IsLoop(id string) bool {
	return loopPattern.MatchString(id) && !IsDedicatedTransition(id)
}

// IsNumberedLoop reports whether id is a loop other than the literal "loop".
func IsNumberedLoop(id string) bool {
	return id != LoopID && IsLoop(id)
}

// IsEnd reports whether id ends with "end".
func IsEnd(id string) bool {
	return strings.HasSuffix(id, EndID)
}

// TransitionTarget returns the loop a dedicated transition resolves into.
func TransitionTarget(id string) (string, bool) {
	m := transitionPattern.FindStringSubmatch(id)
	if m == nil {
		return "", false
	}
	return LoopID + m[2], true
}

// Classify returns the kind of a segment id.
func Classify(id string) Kind {
	switch {
	case IsDedicatedTransition(id):
		return KindTransition
	case id == LoopID:
		return KindLoop
	case IsNumberedLoop(id):
		return KindNumberedLoop
	case id == StartID:
		return KindStart
	case id == EndID:
		return KindEnd
	case IsEnd(id):
		return KindLoopEnd
	}
	return KindOther
}

// Segment is one playable piece of a song.
type Segment struct {
	ID     string
	Format string
	Kind   Kind
	// Path is the segment file, or the archive holding Entry.
	Path  string
	Entry string
	// Transitions lists the segment ids allowed to follow this one, sorted.
	// It is set once by BuildTransitions and never modified afterwards.
	Transitions []string
}

// NewSegment classifies id and returns a segment without transitions.
func NewSegment(id, format string) *Segment {
	return &Segment{ID: id, Format: format, Kind: Classify(id)}
}

func (s *Segment) IsLoop() bool {
	return s.Kind == KindLoop || s.Kind == KindNumberedLoop
}

func (s *Segment) IsDedicatedTransition() bool {
	return s.Kind == KindTransition
}

func (s *Segment) IsEnd() bool {
	return IsEnd(s.ID)
}

// FileType tells segment files apart from song archives.
type FileType int

const (
	SegmentFile FileType = iota
	ArchiveFile
)

var segmentFormats = map[string]bool{
	"wav":  true,
	"ogg":  true,
	"mp3":  true,
	"flac": true,
}

// IsSegmentFormat reports whether format is a playable segment format.
func IsSegmentFormat(format string) bool {
	return segmentFormats[strings.ToLower(format)]
}

// DetectFileType classifies name by its final extension.
func DetectFileType(name string) (FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	switch {
	case segmentFormats[ext]:
		return SegmentFile, nil
	case ext == "zip":
		return ArchiveFile, nil
	}
	return 0, &FileError{Name: name, Err: ErrUnrecognizedFormat}
}

// SongIDFromFileName joins every underscore-delimited token except the last.
func SongIDFromFileName(name string) (string, error) {
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return "", &FileError{Name: name, Err: ErrInvalidFileName}
	}
	return name[:i], nil
}

// ParseSegment extracts the segment from the last underscore-delimited token
// of name: "song_1_loop0.ogg" and the archive entry "loop0.ogg" both yield
// segment loop0 in format ogg.
func ParseSegment(name string) (*Segment, error) {
	token := name[strings.LastIndex(name, "_")+1:]
	id, rest, found := strings.Cut(token, ".")
	if id == "" {
		return nil, &FileError{Name: name, Err: ErrInvalidFileName}
	}
	if !found || rest == "" {
		return nil, &FileError{Name: name, Err: ErrUnrecognizedFormat}
	}
	format := strings.ToLower(rest[strings.LastIndex(rest, ".")+1:])
	return NewSegment(id, format), nil
}
