package catalog

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ArchiveEntry is one file inside a song archive.
type ArchiveEntry struct {
	// Name is the entry name as text, used for classification.
	Name string
	// Raw is the name stored in the archive, used to read the entry back.
	Raw string
}

// ArchiveLister enumerates the files of a song archive.
type ArchiveLister interface {
	List(path string) ([]ArchiveEntry, error)
}

// ZipLister lists zip archives with archive/zip.
type ZipLister struct{}

func (ZipLister) List(path string) ([]ArchiveEntry, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer r.Close()

	entries := make([]ArchiveEntry, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, ArchiveEntry{Name: entryName(f), Raw: f.Name})
	}
	return entries, nil
}

// entryName decodes legacy entry names, which zip stores as CP437 unless the
// UTF-8 flag is set.
func entryName(f *zip.File) string {
	if !f.NonUTF8 || utf8.ValidString(f.Name) {
		return f.Name
	}
	name, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return name
}

func openArchiveEntry(archive, raw string) (io.ReadCloser, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != raw {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", raw, archive, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", raw, archive, err)
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return nil, fmt.Errorf("%s in %s: %w", raw, archive, fs.ErrNotExist)
}
