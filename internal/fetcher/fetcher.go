// Package fetcher lists and opens per-dataset tables from local folders, zip
// archives, FTP and HTTP servers, and S3 buckets.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bigbio/mad-decoy/internal/blob"
	"github.com/bigbio/mad-decoy/internal/resilience"
)

// Entry is one table a Source can open.
type Entry struct {
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
	Size     int64  `json:"size" yaml:"size"`
}

// Source enumerates dataset tables and opens them for reading.
type Source interface {
	// List returns the matching tables sorted by name.
	List(ctx context.Context) ([]Entry, error)

	// Open returns a reader over one listed table. The caller closes it.
	Open(ctx context.Context, e Entry) (io.ReadCloser, error)

	Close() error
}

// Options configures every Source kind. Fields that do not apply to a kind
// are ignored.
type Options struct {
	// Pattern is a comma-separated list of glob patterns matched against
	// base names. Empty matches everything.
	Pattern string

	Timeout   time.Duration
	Retry     resilience.RetryConfig
	RateLimit float64 // requests per second for HTTP, 0 disables
	UserAgent string

	S3         blob.S3Options
	HTTPClient *http.Client
}

// Open picks a Source for location: ftp://, http(s):// and s3:// URLs, a local
// directory, a .zip archive, or a single local table.
func Open(ctx context.Context, location string, opts Options) (Source, error) {
	if err := validatePattern(opts.Pattern); err != nil {
		return nil, err
	}

	if u, err := url.Parse(location); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "ftp":
			return NewFTPSource(location, opts)
		case "http", "https":
			return NewHTTPSource([]string{location}, opts), nil
		case "s3":
			return NewS3Source(ctx, location, opts)
		}
	}

	info, err := os.Stat(location)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: stat %s", location)
	}
	switch {
	case info.IsDir():
		return NewLocalSource(location, opts.Pattern), nil
	case strings.EqualFold(filepath.Ext(location), ".zip"):
		return OpenZipSource(location, opts.Pattern)
	default:
		return NewFileSource(location), nil
	}
}

// MatchPattern reports whether name's base matches any pattern in the
// comma-separated list.
func MatchPattern(pattern, name string) bool {
	if strings.TrimSpace(pattern) == "" {
		return true
	}
	base := path.Base(filepath.ToSlash(name))
	for _, p := range strings.Split(pattern, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if ok, _ := path.Match(p, base); ok {
			return true
		}
	}
	return false
}

func validatePattern(pattern string) error {
	for _, p := range strings.Split(pattern, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return eris.Wrapf(err, "fetcher: bad pattern %q", p)
		}
	}
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}
