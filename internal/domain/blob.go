package domain

import (
	"context"
	"io"
)

// BucketSpec describes one bucket of the object store: its name, the hard
// size ceiling for a single object and the content types it accepts.
// Buckets form a closed set; adding one means adding a spec here.
type BucketSpec struct {
	Name         string
	MaxSizeBytes int64
	ContentTypes []string
}

// LocationImagesBucket holds uploaded location images. The 12 MiB ceiling is
// the single authoritative upload limit for the whole service; the HTTP body
// limit is derived from it so the two can never diverge.
var LocationImagesBucket = BucketSpec{
	Name:         "location-images",
	MaxSizeBytes: 12 << 20,
	ContentTypes: []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/svg+xml",
	},
}

// Buckets returns every bucket the store provisions at startup.
func Buckets() []BucketSpec {
	return []BucketSpec{LocationImagesBucket}
}

// BucketByName looks up a bucket spec by name.
func BucketByName(name string) (BucketSpec, bool) {
	for _, b := range Buckets() {
		if b.Name == name {
			return b, true
		}
	}
	return BucketSpec{}, false
}

// Allows reports whether the bucket accepts the given content type.
func (b BucketSpec) Allows(contentType string) bool {
	for _, ct := range b.ContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

// BlobRef identifies one object in the store.
type BlobRef struct {
	Bucket string
	Key    string
}

// FileUpload is a binary payload handed to the object store.
type FileUpload struct {
	Content     io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// ObjectStore defines the interface for bucket-scoped blob storage.
type ObjectStore interface {
	// EnsureBuckets provisions every known bucket with a public-read policy.
	// Idempotent; safe to call on every process start.
	EnsureBuckets(ctx context.Context) error

	// Upload validates and stores a payload, returning its reference.
	Upload(ctx context.Context, bucket string, upload FileUpload) (BlobRef, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, ref BlobRef) error

	// Exists checks whether the referenced object is present.
	Exists(ctx context.Context, ref BlobRef) (bool, error)

	// URL builds the public URL for a reference. Pure, no network.
	URL(ref BlobRef) string

	// ParseURL is the inverse of URL. ok is false for URLs that do not
	// address a known bucket on this store.
	ParseURL(raw string) (ref BlobRef, ok bool)
}
