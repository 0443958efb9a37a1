package fetcher

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LocalSource reads tables from one directory. Subdirectories are not
// walked.
type LocalSource struct {
	dir     string
	pattern string
}

// NewLocalSource creates a LocalSource over dir.
func NewLocalSource(dir, pattern string) *LocalSource {
	return &LocalSource{dir: dir, pattern: pattern}
}

// List returns the regular files in the directory matching the pattern.
func (s *LocalSource) List(_ context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read dir %s", s.dir)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !MatchPattern(s.pattern, de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: stat %s", de.Name())
		}
		if !info.Mode().IsRegular() {
			continue
		}
		entries = append(entries, Entry{
			Name:     de.Name(),
			Location: filepath.Join(s.dir, de.Name()),
			Size:     info.Size(),
		})
	}
	sortEntries(entries)
	return entries, nil
}

// Open opens the listed file.
func (s *LocalSource) Open(_ context.Context, e Entry) (io.ReadCloser, error) {
	f, err := os.Open(e.Location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", e.Location)
	}
	return f, nil
}

// Close is a no-op.
func (s *LocalSource) Close() error { return nil }

// FileSource serves exactly one local table regardless of pattern.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// List returns the single file.
func (s *FileSource) List(_ context.Context) ([]Entry, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: stat %s", s.path)
	}
	return []Entry{{Name: filepath.Base(s.path), Location: s.path, Size: info.Size()}}, nil
}

// Open opens the file.
func (s *FileSource) Open(_ context.Context, e Entry) (io.ReadCloser, error) {
	f, err := os.Open(e.Location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", e.Location)
	}
	return f, nil
}

// Close is a no-op.
func (s *FileSource) Close() error { return nil }
