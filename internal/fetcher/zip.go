package fetcher

import (
	"archive/zip"
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ZipSource reads tables straight out of a ZIP archive without extracting
// them to disk. Entries in nested folders are listed under their full
// archive path.
type ZipSource struct {
	path    string
	pattern string
	rc      *zip.ReadCloser
	files   map[string]*zip.File
}

// OpenZipSource opens the archive at zipPath.
func OpenZipSource(zipPath, pattern string) (*ZipSource, error) {
	rc, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	files := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		files[f.Name] = f
	}
	return &ZipSource{path: zipPath, pattern: pattern, rc: rc, files: files}, nil
}

// List returns the archive members matching the pattern.
func (s *ZipSource) List(_ context.Context) ([]Entry, error) {
	var entries []Entry
	for _, f := range s.rc.File {
		if f.FileInfo().IsDir() || isMacOSMetadata(f.Name) {
			continue
		}
		if !MatchPattern(s.pattern, f.Name) {
			continue
		}
		entries = append(entries, Entry{
			Name:     f.Name,
			Location: s.path + "!" + f.Name,
			Size:     int64(f.UncompressedSize64),
		})
	}
	sortEntries(entries)
	return entries, nil
}

// Open decompresses one member.
func (s *ZipSource) Open(_ context.Context, e Entry) (io.ReadCloser, error) {
	f, ok := s.files[e.Name]
	if !ok {
		return nil, eris.Errorf("zip: file %q not found in archive", e.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", e.Name)
	}
	return rc, nil
}

// Close releases the archive.
func (s *ZipSource) Close() error {
	return s.rc.Close()
}

func isMacOSMetadata(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}
