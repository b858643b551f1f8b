package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/postforge/postforge/internal/logger"
)

// S3Config holds the connection settings for an S3-compatible bucket
// (AWS S3, Cloudflare R2, MinIO).
type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Blobs stores artifacts in an S3-compatible bucket. Locators use the
// s3:// scheme.
type S3Blobs struct {
	client *s3.Client
	bucket string
}

func NewS3Blobs(ctx context.Context, cfg S3Config) (*S3Blobs, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob bucket not configured")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return &S3Blobs{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Blobs) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	logger.Debug().Str("bucket", s.bucket).Str("key", key).Msg("Uploading object")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
	}

	locator := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	logger.Info().Str("locator", locator).Msg("Upload successful")
	return locator, nil
}

func (s *S3Blobs) PutText(ctx context.Context, key, content string) (string, error) {
	return s.Put(ctx, key, bytes.NewReader([]byte(content)), "text/plain; charset=utf-8")
}

func (s *S3Blobs) Get(ctx context.Context, locator string) ([]byte, error) {
	key, err := splitLocator(locator, "s3", s.bucket)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, locator)
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body for %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Blobs) GetText(ctx context.Context, locator string) (string, error) {
	data, err := s.Get(ctx, locator)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}
