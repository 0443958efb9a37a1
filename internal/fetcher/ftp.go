package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bigbio/mad-decoy/internal/resilience"
)

// FTPSource reads tables from an anonymous FTP server such as the PRIDE
// archive. A URL ending in "/" is listed as a directory; any other URL names
// a single file.
type FTPSource struct {
	host    string
	dir     string
	file    string
	pattern string
	timeout time.Duration
	retry   resilience.RetryConfig
}

// NewFTPSource parses rawURL and prepares a source. No connection is made
// until List or Open.
func NewFTPSource(rawURL string, opts Options) (*FTPSource, error) {
	host, p, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	s := &FTPSource{
		host:    host,
		pattern: opts.Pattern,
		timeout: opts.Timeout,
		retry:   opts.Retry,
	}
	if s.timeout == 0 {
		s.timeout = 30 * time.Second
	}
	if strings.HasSuffix(p, "/") {
		s.dir = p
	} else {
		s.dir, s.file = path.Split(p)
	}
	return s, nil
}

// parseFTPURL extracts host (with port) and path from an FTP URL.
func parseFTPURL(rawURL string) (host string, p string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrap(err, "parse ftp url")
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("expected ftp scheme, got %q", u.Scheme)
	}

	host = u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	p = u.Path
	if p == "" {
		p = "/"
	}
	return host, p, nil
}

func (s *FTPSource) location(name string) string {
	return "ftp://" + s.host + path.Join(s.dir, name)
}

func (s *FTPSource) dial(ctx context.Context) (*ftp.ServerConn, error) {
	zap.L().Debug("ftp: connecting", zap.String("host", s.host), zap.String("dir", s.dir))

	conn, err := ftp.Dial(s.host, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "ftp dial")
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, eris.Wrap(err, "ftp login")
	}
	return conn, nil
}

// List returns the files in the directory matching the pattern, or the
// single named file.
func (s *FTPSource) List(ctx context.Context) ([]Entry, error) {
	if s.file != "" {
		return []Entry{{Name: s.file, Location: s.location(s.file)}}, nil
	}

	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("ftp", s.location(""))

	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]Entry, error) {
		conn, err := s.dial(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Quit() //nolint:errcheck

		listing, err := conn.List(s.dir)
		if err != nil {
			return nil, eris.Wrapf(err, "ftp list %s", s.dir)
		}

		var entries []Entry
		for _, fe := range listing {
			if fe.Type != ftp.EntryTypeFile || !MatchPattern(s.pattern, fe.Name) {
				continue
			}
			entries = append(entries, Entry{
				Name:     fe.Name,
				Location: s.location(fe.Name),
				Size:     int64(fe.Size),
			})
		}
		sortEntries(entries)
		return entries, nil
	})
}

// ftpConnReader wraps an FTP response and connection so that closing the reader
// also closes the FTP response and disconnects from the server.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "close ftp response")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "quit ftp connection")
	}
	return nil
}

// Open connects on a fresh control connection and retrieves the file. The
// caller must close the returned reader to release the connection.
func (s *FTPSource) Open(ctx context.Context, e Entry) (io.ReadCloser, error) {
	remote := path.Join(s.dir, e.Name)
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("ftp", e.Location)

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (io.ReadCloser, error) {
		conn, err := s.dial(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := conn.Retr(remote)
		if err != nil {
			conn.Quit() //nolint:errcheck
			return nil, eris.Wrap(err, "ftp retrieve")
		}
		return &ftpConnReader{resp: resp, conn: conn}, nil
	})
}

// Close is a no-op; every call holds its own connection.
func (s *FTPSource) Close() error { return nil }
