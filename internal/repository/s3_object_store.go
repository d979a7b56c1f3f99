package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/oklog/ulid/v2"

	appConfig "github.com/waypointhq/waypoint/internal/config"
	"github.com/waypointhq/waypoint/internal/domain"
)

// S3ObjectStore implements domain.ObjectStore against an S3-compatible
// store (SeaweedFS, MinIO). Buckets are the closed set from domain.Buckets;
// each is provisioned with anonymous read access at startup, while writes
// and deletes go through this authenticated client.
type S3ObjectStore struct {
	client    *s3.Client
	publicURL string
	buckets   []domain.BucketSpec
}

// NewS3ObjectStore creates an object store client from configuration.
func NewS3ObjectStore(ctx context.Context, cfg appConfig.S3Config) (*S3ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // Required for many S3-compatible stores including SeaweedFS
	})

	return &S3ObjectStore{
		client:    client,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		buckets:   domain.Buckets(),
	}, nil
}

// publicReadPolicy grants anonymous GetObject on every object of the bucket.
func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}
	]
}`, bucket)
}

// EnsureBuckets provisions every known bucket and attaches its public-read
// policy. A bucket that cannot be provisioned is logged and skipped;
// uploads to it will fail until an operator fixes provisioning.
func (s *S3ObjectStore) EnsureBuckets(ctx context.Context) error {
	for _, spec := range s.buckets {
		if err := s.ensureBucket(ctx, spec.Name); err != nil {
			log.Printf("Warning: failed to provision bucket %s: %v", spec.Name, err)
		}
	}
	return nil
}

func (s *S3ObjectStore) ensureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucket),
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	_, err = s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(publicReadPolicy(bucket)),
	})
	if err != nil {
		return fmt.Errorf("failed to set bucket policy on %s: %w", bucket, err)
	}
	return nil
}

// Upload validates the payload against the bucket's spec and stores it
// under a freshly generated key. Validation happens before any network
// call, so a rejected payload leaves no object behind.
func (s *S3ObjectStore) Upload(ctx context.Context, bucket string, upload domain.FileUpload) (domain.BlobRef, error) {
	spec, ok := domain.BucketByName(bucket)
	if !ok {
		return domain.BlobRef{}, fmt.Errorf("%w: unknown bucket %q", domain.ErrInvalidInput, bucket)
	}
	if upload.Size <= 0 {
		return domain.BlobRef{}, fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if upload.Size > spec.MaxSizeBytes {
		return domain.BlobRef{}, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", domain.ErrTooLarge, upload.Size, spec.MaxSizeBytes)
	}
	if !spec.Allows(upload.ContentType) {
		return domain.BlobRef{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, upload.ContentType)
	}

	key := newObjectKey(upload.Filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          upload.Content,
		ContentLength: aws.Int64(upload.Size),
		ContentType:   aws.String(upload.ContentType),
		Metadata: map[string]string{
			"original-filename": upload.Filename,
		},
	})
	if err != nil {
		return domain.BlobRef{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	return domain.BlobRef{Bucket: bucket, Key: key}, nil
}

// newObjectKey generates a globally unique object key, keeping the original
// file extension for content-type sniffing by browsers.
func newObjectKey(filename string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	return strings.ToLower(id) + strings.ToLower(filepath.Ext(filename))
}

// Delete removes an object. A missing object is success, not an error:
// compensating deletes may race with earlier deletes of the same blob.
func (s *S3ObjectStore) Delete(ctx context.Context, ref domain.BlobRef) error {
	if _, ok := domain.BucketByName(ref.Bucket); !ok {
		return fmt.Errorf("%w: unknown bucket %q", domain.ErrInvalidInput, ref.Bucket)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object %s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return nil
}

// Exists checks whether the referenced object is present in the store.
func (s *S3ObjectStore) Exists(ctx context.Context, ref domain.BlobRef) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s/%s: %w", ref.Bucket, ref.Key, err)
	}
	return true, nil
}

// URL builds the public path-style URL of an object. Pure function of the
// configured endpoint and the reference.
func (s *S3ObjectStore) URL(ref domain.BlobRef) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, ref.Bucket, ref.Key)
}

// ParseURL is the inverse of URL. It recognizes only URLs under this
// store's public base addressing a known bucket; anything else is foreign.
func (s *S3ObjectStore) ParseURL(raw string) (domain.BlobRef, bool) {
	rest, found := strings.CutPrefix(raw, s.publicURL+"/")
	if !found {
		return domain.BlobRef{}, false
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || key == "" {
		return domain.BlobRef{}, false
	}
	if _, ok := domain.BucketByName(bucket); !ok {
		return domain.BlobRef{}, false
	}
	return domain.BlobRef{Bucket: bucket, Key: key}, true
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
