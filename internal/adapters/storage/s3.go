package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jobrunner/landsatlook/internal/domain"
	"github.com/jobrunner/landsatlook/internal/ports/output"
)

// S3Config holds S3 configuration.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RequesterPays   bool // required by the usgs-landsat bucket

	// Publishing target
	Bucket string
	Prefix string
}

// newS3Client builds an S3 client from the default AWS config chain,
// overridden by explicit credentials and endpoint.
func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// ParseS3URI splits s3://bucket/key into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%q is not an s3:// URI: %w", uri, domain.ErrUnsupportedHref)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", &domain.ValidationError{Field: "href", Value: uri, Constraint: "s3://bucket/key", Message: "incomplete S3 URI"}
	}
	return bucket, key, nil
}

// S3Fetcher downloads s3:// asset hrefs.
type S3Fetcher struct {
	client        *s3.Client
	requesterPays bool
}

var _ output.AssetFetcher = (*S3Fetcher)(nil)

// NewS3Fetcher creates a new S3 fetcher.
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3Fetcher{client: client, requesterPays: cfg.RequesterPays}, nil
}

// Supports reports whether href is an s3:// URI.
func (f *S3Fetcher) Supports(href string) bool {
	return strings.HasPrefix(href, "s3://")
}

// Fetch downloads the object to dest.
func (f *S3Fetcher) Fetch(ctx context.Context, href string, dest string) (int64, error) {
	bucket, key, err := ParseS3URI(href)
	if err != nil {
		return 0, err
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if f.requesterPays {
		input.RequestPayer = types.RequestPayerRequester
	}

	resp, err := f.client.GetObject(ctx, input)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			err = fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		}
		return 0, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// Write to file
	file, err := os.Create(dest) //#nosec G304 -- dest is a controlled local path
	if err != nil {
		return 0, &domain.StorageError{Operation: "create", Key: dest, Err: err}
	}

	n, err := io.Copy(file, resp.Body)
	if cerr := file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return n, &domain.StorageError{Operation: "fetch", Key: href, Err: err}
	}
	return n, nil
}

// S3Publisher uploads produced rasters to an S3 bucket.
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ output.Publisher = (*S3Publisher)(nil)

// NewS3Publisher creates a new S3 publisher.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, &domain.ConfigError{Field: "publish.s3.bucket", Message: "bucket is required"}
	}
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &S3Publisher{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Publish uploads localPath and returns its s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, localPath string, key string) (string, error) {
	f, err := os.Open(localPath) //#nosec G304 -- localPath was produced by this process
	if err != nil {
		return "", &domain.StorageError{Operation: "publish", Key: localPath, Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return "", &domain.StorageError{Operation: "publish", Key: localPath, Err: err}
	}

	full := p.fullKey(key)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(full),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
		ContentType:   aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", &domain.StorageError{Operation: "publish", Key: full, Err: err}
	}
	return "s3://" + p.bucket + "/" + full, nil
}

// fullKey returns the full S3 key including prefix.
func (p *S3Publisher) fullKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if p.prefix == "" {
		return key
	}
	return p.prefix + "/" + key
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".tif", ".tiff":
		return "image/tiff; application=geotiff"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
