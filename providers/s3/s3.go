// Package s3bucket keeps serialized graphs in an S3 object.
package s3bucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hengadev/miscutils"
)

// API is the part of *s3.Client the store calls.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store is a miscutils.Store on one object.
type Store struct {
	client      API
	bucket      string
	key         string
	contentType string
	sse         types.ServerSideEncryption
}

// Option configures a Store.
type Option func(*Store)

// WithContentType sets the Content-Type written with the object.
func WithContentType(contentType string) Option {
	return func(s *Store) {
		s.contentType = contentType
	}
}

// WithServerSideEncryption asks S3 to encrypt the object at rest.
func WithServerSideEncryption(sse types.ServerSideEncryption) Option {
	return func(s *Store) {
		s.sse = sse
	}
}

// New returns a store on bucket/key.
func New(client API, bucket, key string, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, miscutils.ErrNilStore
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: bucket and key are required", miscutils.ErrInvalidConfiguration)
	}
	s := &Store{
		client:      client,
		bucket:      bucket,
		key:         key,
		contentType: "application/octet-stream",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromEnvironment builds the S3 client from the default AWS
// configuration chain (environment, shared config, instance role).
func NewFromEnvironment(ctx context.Context, bucket, key string, opts ...Option) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load AWS config: %w", miscutils.ErrInvalidConfiguration, err)
	}
	return New(s3.NewFromConfig(cfg), bucket, key, opts...)
}

// URI returns s3://bucket/key.
func (s *Store) URI() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// ReadBytes downloads the object. A missing object reads as empty.
func (s *Store) ReadBytes(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", miscutils.ErrStorageUnavailable, s.URI(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", miscutils.ErrStorageUnavailable, s.URI(), err)
	}
	return data, nil
}

// WriteBytes uploads data, replacing the object.
func (s *Store) WriteBytes(ctx context.Context, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.contentType),
	}
	if s.sse != "" {
		input.ServerSideEncryption = s.sse
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%w: put %s: %w", miscutils.ErrStorageUnavailable, s.URI(), err)
	}
	return nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: delete %s: %w", miscutils.ErrStorageUnavailable, s.URI(), err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	// S3-compatible servers do not always return the modeled error types.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
