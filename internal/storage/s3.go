package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures an S3-compatible bucket (AWS, MinIO, R2, Supabase).
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL is the prefix objects are publicly served from. When empty
	// it is derived from Endpoint (path style) or the AWS virtual host.
	PublicBaseURL string
	HTTPClient    *http.Client
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store writes objects through the S3 API with a single attempt per call.
type S3Store struct {
	api        s3API
	bucket     string
	publicBase string
}

func NewS3Store(opts S3Options) (*S3Store, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	keyID, secret := strings.TrimSpace(opts.AccessKeyID), strings.TrimSpace(opts.SecretAccessKey)
	if keyID == "" || secret == "" {
		return nil, errors.New("storage: s3 access key id and secret access key are required")
	}

	s3opts := s3.Options{
		Region:                     region,
		Retryer:                    aws.NopRetryer{},
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	s3opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{AccessKeyID: keyID, SecretAccessKey: secret, Source: "imagegen-config"}, nil
	})
	if endpoint != "" {
		s3opts.BaseEndpoint = aws.String(endpoint)
		s3opts.UsePathStyle = true
	}
	if opts.HTTPClient != nil {
		s3opts.HTTPClient = opts.HTTPClient
	}

	publicBase := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	switch {
	case publicBase != "":
	case endpoint != "":
		publicBase = endpoint + "/" + bucket
	default:
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return newS3Store(s3.New(s3opts), bucket, publicBase), nil
}

func newS3Store(api s3API, bucket, publicBase string) *S3Store {
	return &S3Store{api: api, bucket: bucket, publicBase: publicBase}
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error {
	if s == nil {
		return ErrNoStore
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if cacheControl != "" {
		input.CacheControl = aws.String(cacheControl)
	}
	if _, err := s.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("storage: s3 put %s: %w", cleanKey, err)
	}
	return nil
}

func (s *S3Store) PublicURL(key string) string {
	if s == nil {
		return ""
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return ""
	}
	return s.publicBase + "/" + escapeKey(cleanKey)
}

// Delete removes key. S3 reports success for missing keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	if s == nil {
		return ErrNoStore
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	}); err != nil {
		return fmt.Errorf("storage: s3 delete %s: %w", cleanKey, err)
	}
	return nil
}
