// Package media resolves opaque media references to readable streams.
// References are owned by the upload subsystem; the scheduler core only
// ever reads through this fetcher.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Fetcher opens a media reference for reading. The returned name is the
// payload's base filename, suitable for upload forms.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (body io.ReadCloser, name string, err error)
}

type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// RefFetcher handles local path refs and s3://bucket/key refs.
type RefFetcher struct {
	baseDir string
	s3      s3API
}

// Option configures a RefFetcher.
type Option func(*RefFetcher)

// WithS3Client injects an S3 client, typically from NewS3Client.
func WithS3Client(client s3API) Option {
	return func(f *RefFetcher) { f.s3 = client }
}

// New builds a fetcher rooted at baseDir for relative local refs.
func New(baseDir string, opts ...Option) *RefFetcher {
	if baseDir == "" {
		baseDir = "."
	}
	f := &RefFetcher{baseDir: baseDir}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewS3Client loads AWS configuration and returns an S3 client, honoring
// an optional custom endpoint for S3-compatible stores.
func NewS3Client(ctx context.Context, region, endpoint string, pathStyle bool) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: pathStyle,
					SigningRegion:     region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	}), nil
}

// Fetch opens the reference. s3:// refs require an injected S3 client;
// anything else is treated as a filesystem path, resolved under the base
// directory when relative.
func (f *RefFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if ref == "" {
		return nil, "", errors.New("empty media ref")
	}
	if bucket, key, ok := splitS3Ref(ref); ok {
		if f.s3 == nil {
			return nil, "", fmt.Errorf("media ref %q requires an s3 client", ref)
		}
		out, err := f.s3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, "", fmt.Errorf("get object %s: %w", ref, err)
		}
		return out.Body, filepath.Base(key), nil
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.baseDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open media %s: %w", ref, err)
	}
	return file, filepath.Base(path), nil
}

func splitS3Ref(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
