package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/TobiSchelling/burstkit/internal/config"
)

// maxObjectSize caps how much of an S3 object is read into memory.
const maxObjectSize = 100 * 1024 * 1024

// ObjectGetter is the part of the S3 client Fetcher needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher reads input files from local paths or s3://bucket/key locations.
type Fetcher struct {
	cfg    config.S3
	client ObjectGetter
}

// NewFetcher returns a Fetcher. The S3 client is created on first use so
// local-only runs never load AWS credentials.
func NewFetcher(cfg config.S3) *Fetcher {
	return &Fetcher{cfg: cfg}
}

// NewFetcherWithClient returns a Fetcher that uses client for S3 reads.
func NewFetcherWithClient(client ObjectGetter) *Fetcher {
	return &Fetcher{client: client}
}

// IsS3 reports whether location names an S3 object.
func IsS3(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// Fetch returns the full contents of location.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if !IsS3(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", location, err)
		}
		return data, nil
	}

	bucket, key, err := ParseS3(location)
	if err != nil {
		return nil, err
	}
	if f.client == nil {
		client, err := newS3Client(ctx, f.cfg)
		if err != nil {
			return nil, err
		}
		f.client = client
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return data, nil
}

// ParseS3 splits s3://bucket/key into its bucket and key.
func ParseS3(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", location, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 location %q (want s3://bucket/key)", location)
	}
	return bucket, key, nil
}

func newS3Client(ctx context.Context, cfg config.S3) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		// MinIO and other S3-compatible stores
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, opts...), nil
}
