package storage

import (
	"context"
	"io"
	"strings"

	"crm-backend/internal/domain"
	"crm-backend/internal/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const s3Service = "s3"

var tracer = otel.Tracer("storage")

// S3PutAPI is the part of the S3 client used for uploads.
type S3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client. A custom endpoint switches to path-style
// addressing for MinIO and other S3-compatible stores.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3 stores objects in one bucket and links them through PublicBaseURL.
type S3 struct {
	Client        S3PutAPI
	Bucket        string
	PublicBaseURL string
	Metrics       *observability.Metrics
}

func (s S3) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	ctx, span := tracer.Start(ctx, "S3.PutObject")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", s.Bucket), attribute.String("key", key))

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.Client.PutObject(ctx, in); err != nil {
		if s.Metrics != nil {
			s.Metrics.IncrExternalError(s3Service)
		}
		return "", &domain.ExternalServiceError{Service: s3Service, Err: err}
	}
	return strings.TrimRight(s.PublicBaseURL, "/") + "/" + key, nil
}
