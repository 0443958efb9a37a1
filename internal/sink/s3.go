package sink

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"

	"github.com/bigbio/mad-decoy/internal/blob"
	"github.com/bigbio/mad-decoy/internal/resilience"
)

var contentTypes = map[Format]string{
	FormatCSV:  "text/csv",
	FormatTSV:  "text/tab-separated-values",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// writeS3 encodes tbl in memory and uploads it as one object.
func writeS3(ctx context.Context, target string, format Format, tbl Table, opts blob.S3Options, retry resilience.RetryConfig) (int64, error) {
	contentType, ok := contentTypes[format]
	if !ok {
		return 0, eris.Errorf("sink: format %s is not supported for s3 targets", format)
	}
	bucket, key, err := blob.ParseS3URL(target)
	if err != nil {
		return 0, err
	}
	if key == "" {
		return 0, eris.Errorf("sink: missing object key in %q", target)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, format, tbl); err != nil {
		return 0, err
	}

	client, err := blob.NewS3Client(ctx, opts)
	if err != nil {
		return 0, err
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("s3", target)
	}
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String(contentType),
		})
		return err
	})
	if err != nil {
		return 0, eris.Wrapf(err, "sink: put %s", target)
	}
	return int64(len(tbl.Records)), nil
}
