package blob

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MemoryS3 is an in-memory http.RoundTripper that answers the subset of the
// S3 API used here (PutObject, GetObject, ListObjectsV2) for path-style
// requests. It backs tests that exercise s3:// locations without network.
type MemoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte // "bucket/key" -> body
}

// NewMemoryS3 returns an empty in-memory S3.
func NewMemoryS3() *MemoryS3 {
	return &MemoryS3{objects: make(map[string][]byte)}
}

// Client returns an S3 client whose requests are served by m.
func (m *MemoryS3) Client(ctx context.Context) (*s3.Client, error) {
	return NewS3Client(ctx, m.Options())
}

// Options returns S3Options routed to m.
func (m *MemoryS3) Options() S3Options {
	return S3Options{
		Region:          "us-east-1",
		Endpoint:        "https://s3.memory.local",
		PathStyle:       true,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		HTTPClient:      &http.Client{Transport: m},
	}
}

// Put stores an object directly.
func (m *MemoryS3) Put(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = append([]byte(nil), body...)
}

// Get returns a stored object.
func (m *MemoryS3) Get(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[bucket+"/"+key]
	return b, ok
}

func (m *MemoryS3) RoundTrip(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		return m.list(bucket, req.URL.Query().Get("prefix")), nil
	case req.Method == http.MethodGet:
		body, ok := m.objects[bucket+"/"+key]
		if !ok {
			return xmlResponse(http.StatusNotFound, "<Error><Code>NoSuchKey</Code><Message>not found</Message></Error>"), nil
		}
		return &http.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{"Content-Length": {strconv.Itoa(len(body))}},
			ContentLength: int64(len(body)),
			Body:          io.NopCloser(bytes.NewReader(body)),
		}, nil
	case req.Method == http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		m.objects[bucket+"/"+key] = body
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"ETag": {`"memory"`}},
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}, nil
	}
	return xmlResponse(http.StatusNotImplemented, "<Error><Code>NotImplemented</Code></Error>"), nil
}

func (m *MemoryS3) list(bucket, prefix string) *http.Response {
	var keys []string
	for k := range m.objects {
		b, key, _ := strings.Cut(k, "/")
		if b == bucket && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	sb.WriteString("<Name>" + bucket + "</Name><IsTruncated>false</IsTruncated>")
	for _, k := range keys {
		fmt.Fprintf(&sb, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>",
			k, len(m.objects[bucket+"/"+k]))
	}
	sb.WriteString("</ListBucketResult>")
	return xmlResponse(http.StatusOK, sb.String())
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/xml"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// decodeAWSChunked strips aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n" repeated,
// terminated by a zero-length chunk and optional trailers.
func decodeAWSChunked(b []byte) []byte {
	r := bufio.NewReader(bytes.NewReader(b))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return b
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return b
		}
		if size == 0 {
			return out.Bytes()
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return b
		}
		if _, err := r.Discard(2); err != nil {
			return b
		}
	}
}
