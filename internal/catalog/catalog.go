package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

// Catalog maps song ids to songs. It is read-only once Build returns.
type Catalog map[string]*Song

// IDs returns the song ids, sorted.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type builder struct {
	lister ArchiveLister
	opener Opener
	logger zerolog.Logger
}

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithArchiveLister replaces the zip reader used to enumerate archives.
func WithArchiveLister(l ArchiveLister) Option {
	return func(b *builder) { b.lister = l }
}

// WithOpener replaces how the built songs read their segment bytes.
func WithOpener(o Opener) Option {
	return func(b *builder) { b.opener = o }
}

// Build ingests an inventory of segment files and song archives into a
// catalog and builds every song's transition graph.
//
// Files that cannot be classified are skipped with a warning. Two files
// resolving to the same song and segment abort the build with a
// *DuplicateSegmentError. Songs without a start, or with a transition to a
// segment they lack, are dropped with a warning so every song left in the
// catalog can be planned.
func Build(paths []string, opts ...Option) (Catalog, error) {
	b := &builder{lister: ZipLister{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}

	songs := make(Catalog)
	for _, p := range paths {
		if err := b.ingest(songs, p); err != nil {
			return nil, err
		}
	}

	for id, song := range songs {
		song.finalize()
		if _, ok := song.Segments[StartID]; !ok {
			b.logger.Warn().Str("song", id).Err(ErrMissingStart).Msg("Dropping song")
			delete(songs, id)
			continue
		}
		BuildTransitions(song)
		if err := CheckTransitions(song); err != nil {
			b.logger.Warn().Str("song", id).Err(err).Msg("Dropping song")
			delete(songs, id)
		}
	}
	return songs, nil
}

func (b *builder) ingest(songs Catalog, p string) error {
	name := filepath.Base(p)
	if !utf8.ValidString(name) {
		b.warn(p, ErrPathNotUnicode)
		return nil
	}
	name = norm.NFC.String(name)

	fileType, err := DetectFileType(name)
	if err != nil {
		b.warn(p, err)
		return nil
	}

	switch fileType {
	case SegmentFile:
		songID, err := SongIDFromFileName(name)
		if err != nil {
			b.warn(p, err)
			return nil
		}
		seg, err := ParseSegment(name)
		if err != nil {
			b.warn(p, err)
			return nil
		}
		seg.Path = p
		return b.song(songs, songID, "").add(seg)

	case ArchiveFile:
		songID := strings.TrimSuffix(name, filepath.Ext(name))
		if songID == "" {
			b.warn(p, &FileError{Name: name, Err: ErrInvalidFileName})
			return nil
		}
		entries, err := b.lister.List(p)
		if err != nil {
			return err
		}
		b.logger.Info().Str("song", songID).Msg("Encountered archive")
		song := b.song(songs, songID, p)
		for _, e := range entries {
			entry := norm.NFC.String(filepath.Base(filepath.FromSlash(e.Name)))
			if _, err := DetectFileType(entry); err != nil {
				b.warn(p+":"+e.Name, err)
				continue
			}
			seg, err := ParseSegment(entry)
			if err != nil {
				b.warn(p+":"+e.Name, err)
				continue
			}
			seg.Path, seg.Entry = p, e.Raw
			if err := song.add(seg); err != nil {
				return err
			}
		}
	}
	return nil
}

// song returns the song with the given id, creating it on first sight. A
// non-empty archive is recorded whenever that archive contributes segments.
func (b *builder) song(songs Catalog, id, archive string) *Song {
	song, ok := songs[id]
	if !ok {
		song = newSong(id)
		song.opener = b.opener
		songs[id] = song
	}
	if archive != "" {
		song.Archive = archive
	}
	return song
}

func (b *builder) warn(p string, err error) {
	b.logger.Warn().Str("path", p).Err(err).Msg("Dropping file")
}

// ScanDir lists the entries of dir as paths, sorted by name.
func ScanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read songs dir: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
