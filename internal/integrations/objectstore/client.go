package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// s3API is the subset of *s3.Client used by Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store keeps media and generated reports in one S3 bucket.
type Store struct {
	api           s3API
	bucket        string
	region        string
	publicBaseURL string
	log           zerolog.Logger
}

// New creates a Store. publicBaseURL, when set, replaces the virtual-hosted
// S3 URL in links handed to the messaging provider (e.g. a CDN in front of
// the bucket).
func New(api s3API, bucket, region, publicBaseURL string, log zerolog.Logger) (*Store, error) {
	if api == nil {
		return nil, errors.New("objectstore: api must not be nil")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("objectstore: bucket must not be empty")
	}
	return &Store{
		api:           api,
		bucket:        bucket,
		region:        strings.TrimSpace(region),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		log:           log.With().Str("component", "s3-storage").Logger(),
	}, nil
}

// Bucket is the bucket every object of this store lives in.
func (s *Store) Bucket() string { return s.bucket }

// Upload writes data under key with the given content type.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("objectstore: key must not be empty")
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("objectstore: upload %s: %w", key, err)
	}
	return nil
}

// MakePublic grants anonymous read access to key.
func (s *Store) MakePublic(ctx context.Context, key string) error {
	_, err := s.api.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("objectstore: make public %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("objectstore: head %s: %w", key, err)
}

// Delete removes key from bucket. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	if bucket == "" {
		bucket = s.bucket
	}
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("objectstore: delete %s/%s: %w", bucket, key, err)
	}
	if err != nil {
		s.log.Debug().Str("bucket", bucket).Str("key", key).Msg("object already absent")
	}
	return nil
}

// PublicURL returns the anonymous URL of key.
func (s *Store) PublicURL(key string) string {
	escaped := escapeKey(key)
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escaped
	}
	if s.region == "" || s.region == "us-east-1" {
		return "https://" + s.bucket + ".s3.amazonaws.com/" + escaped
	}
	return "https://" + s.bucket + ".s3." + s.region + ".amazonaws.com/" + escaped
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
