package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedFormat is returned for extensions other than the segment
	// formats and zip.
	ErrUnrecognizedFormat = errors.New("unrecognized song format, only wav, flac, ogg, mp3 and zip are supported")

	// ErrPathNotUnicode is returned for file names that are not valid UTF-8.
	ErrPathNotUnicode = errors.New("path is not valid unicode")

	// ErrInvalidFileName is returned for names not shaped like song_1_start.ogg.
	ErrInvalidFileName = errors.New("invalid file name, files should be named like song_1_start.ogg")

	// ErrDuplicateSegment is matched by every *DuplicateSegmentError.
	ErrDuplicateSegment = errors.New("found multiple segments with same ID")

	// ErrMissingStart is returned when a song has no start segment.
	ErrMissingStart = errors.New("song has no start segment")

	// ErrMissingTarget is matched by every *MissingTargetError.
	ErrMissingTarget = errors.New("transition leads to a missing segment")
)

// FileError ties a classification error to the file or entry name that caused it.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("'%s': %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// DuplicateSegmentError reports two files resolving to the same song and segment.
type DuplicateSegmentError struct {
	SongID    string
	SegmentID string
}

func (e *DuplicateSegmentError) Error() string {
	return fmt.Sprintf("%v: song: %s segment: %s", ErrDuplicateSegment, e.SongID, e.SegmentID)
}

func (e *DuplicateSegmentError) Is(target error) bool {
	return target == ErrDuplicateSegment
}

// MissingTargetError reports a transition to a segment the song does not have.
type MissingTargetError struct {
	SongID string
	From   string
	To     string
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("song %s: %s -> %s which does not exist", e.SongID, e.From, e.To)
}

func (e *MissingTargetError) Is(target error) bool {
	return target == ErrMissingTarget
}
