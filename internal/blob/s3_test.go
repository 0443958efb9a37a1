package blob

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "bucket and prefix", url: "s3://proteomics/runs/2024/", wantBucket: "proteomics", wantKey: "runs/2024/"},
		{name: "object key", url: "s3://proteomics/out/merged.csv", wantBucket: "proteomics", wantKey: "out/merged.csv"},
		{name: "bucket only", url: "s3://proteomics", wantBucket: "proteomics", wantKey: ""},
		{name: "wrong scheme", url: "ftp://proteomics/x", wantErr: true},
		{name: "missing bucket", url: "s3:///key", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestMemoryS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryS3()
	client, err := mem.Client(ctx)
	require.NoError(t, err)

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: strPtr("bucket"),
		Key:    strPtr("runs/a.tsv"),
		Body:   bytes.NewReader([]byte("protein_accessions\tis_decoy\n")),
	})
	require.NoError(t, err)
	mem.Put("bucket", "runs/b.tsv", []byte("x"))
	mem.Put("bucket", "other/c.tsv", []byte("y"))

	stored, ok := mem.Get("bucket", "runs/a.tsv")
	require.True(t, ok)
	assert.Equal(t, "protein_accessions\tis_decoy\n", string(stored))

	list, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: strPtr("bucket"), Prefix: strPtr("runs/")})
	require.NoError(t, err)
	require.Len(t, list.Contents, 2)
	assert.Equal(t, "runs/a.tsv", *list.Contents[0].Key)

	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: strPtr("bucket"), Key: strPtr("runs/b.tsv")})
	require.NoError(t, err)
	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.Equal(t, "x", string(body))

	_, err = client.GetObject(ctx, &s3.GetObjectInput{Bucket: strPtr("bucket"), Key: strPtr("missing")})
	assert.Error(t, err)
}

func TestDecodeAWSChunked(t *testing.T) {
	framed := []byte("5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	assert.Equal(t, "hello world", string(decodeAWSChunked(framed)))

	plain := []byte("not framed")
	assert.Equal(t, plain, decodeAWSChunked(plain))
}

func strPtr(s string) *string { return &s }
