package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"

	"github.com/satindergrewal/loopdj/internal/catalog"
)

// Decode picks the beep decoder for a segment format.
func Decode(format string, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(format) {
	case "wav":
		return wav.Decode(rc)
	case "ogg":
		return vorbis.Decode(rc)
	case "mp3":
		return mp3.Decode(rc)
	case "flac":
		return flac.Decode(rc)
	}
	return nil, beep.Format{}, fmt.Errorf("'%s': %w", format, catalog.ErrUnrecognizedFormat)
}

// Load decodes rc completely into memory. It always closes rc.
func Load(format string, rc io.ReadCloser) (*beep.Buffer, error) {
	defer rc.Close()

	s, f, err := Decode(format, rc)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	buf := beep.NewBuffer(f)
	buf.Append(s)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return buf, nil
}

// LoadSegment reads and decodes one segment of song.
func LoadSegment(song *catalog.Song, seg *catalog.Segment) (*beep.Buffer, error) {
	rc, err := song.Open(seg)
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", song.ID, seg.ID, err)
	}
	buf, err := Load(seg.Format, rc)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", song.ID, seg.ID, err)
	}
	return buf, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// ToPCM interleaves stereo float samples into int16, clipping at full scale.
func ToPCM(samples [][2]float64, dst []int16) []int16 {
	dst = dst[:0]
	for _, s := range samples {
		dst = append(dst, clip16(s[0]), clip16(s[1]))
	}
	return dst
}

func clip16(v float64) int16 {
	v *= 32767
	if v > 32767 {
		return 32767
	} else if v < -32768 {
		return -32768
	}
	return int16(v)
}
