package fetcher

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"

	"github.com/bigbio/mad-decoy/internal/blob"
	"github.com/bigbio/mad-decoy/internal/resilience"
)

// S3Source reads every object under a bucket prefix. Names are keys relative
// to the prefix.
type S3Source struct {
	client  *s3.Client
	bucket  string
	prefix  string
	pattern string
	retry   resilience.RetryConfig
}

// NewS3Source builds a client from opts.S3 and wraps it.
func NewS3Source(ctx context.Context, rawURL string, opts Options) (*S3Source, error) {
	bucket, prefix, err := blob.ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	client, err := blob.NewS3Client(ctx, opts.S3)
	if err != nil {
		return nil, err
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix, pattern: opts.Pattern, retry: opts.Retry}, nil
}

// List pages through the prefix and returns matching objects.
func (s *S3Source) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrapf(err, "s3: list s3://%s/%s", s.bucket, s.prefix)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !MatchPattern(s.pattern, key) {
				continue
			}
			name := strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
			if name == "" {
				name = key[strings.LastIndex(key, "/")+1:]
			}
			entries = append(entries, Entry{
				Name:     name,
				Location: "s3://" + s.bucket + "/" + key,
				Size:     aws.ToInt64(obj.Size),
			})
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Open streams one object.
func (s *S3Source) Open(ctx context.Context, e Entry) (io.ReadCloser, error) {
	_, key, err := blob.ParseS3URL(e.Location)
	if err != nil {
		return nil, err
	}
	retry := s.retry
	retry.OnRetry = resilience.RetryLogger("s3", e.Location)

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (io.ReadCloser, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, eris.Wrapf(err, "s3: get %s", e.Location)
		}
		return out.Body, nil
	})
}

// Close is a no-op.
func (s *S3Source) Close() error { return nil }
