package repository

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waypointhq/waypoint/internal/domain"
)

// fakeS3 records every request it receives and answers with canned S3
// responses: 200 for PUT/HEAD, 204 for DELETE, 404 for HEAD on a path
// listed in missing.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string // "METHOD /path"
	missing  map[string]bool
}

func (f *fakeS3) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		gone := f.missing[r.URL.Path]
		f.mu.Unlock()

		// Drain the body so the server does not close the connection
		// mid-write on large uploads, which the SDK would retry and
		// double-count in requests.
		io.Copy(io.Discard, r.Body)

		switch {
		case r.Method == http.MethodHead && gone:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
}

func (f *fakeS3) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestStore(t *testing.T) (*S3ObjectStore, *fakeS3) {
	t.Helper()

	fake := &fakeS3{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("test", "test", ""),
	})

	return &S3ObjectStore{
		client:    client,
		publicURL: srv.URL,
		buckets:   domain.Buckets(),
	}, fake
}

func validUpload(size int64) domain.FileUpload {
	return domain.FileUpload{
		Content:     bytes.NewReader(make([]byte, size)),
		Size:        size,
		ContentType: "image/png",
		Filename:    "photo.PNG",
	}
}

func TestS3ObjectStore_URLRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	ref := domain.BlobRef{Bucket: domain.LocationImagesBucket.Name, Key: "01hq3ka9k7v2.png"}
	parsed, ok := store.ParseURL(store.URL(ref))
	require.True(t, ok)
	assert.Equal(t, ref, parsed)
}

func TestS3ObjectStore_ParseURL_Foreign(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"other host", "https://example.com/photo.jpg"},
		{"other host with bucket substring", "https://evil.example.com/location-images/abc.png"},
		{"unknown bucket on our host", store.publicURL + "/other-bucket/abc.png"},
		{"missing key", store.publicURL + "/location-images/"},
		{"bucket only", store.publicURL + "/location-images"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := store.ParseURL(tt.raw)
			assert.False(t, ok)
		})
	}
}

func TestS3ObjectStore_Upload_Success(t *testing.T) {
	store, fake := newTestStore(t)

	ref, err := store.Upload(context.Background(), domain.LocationImagesBucket.Name, validUpload(1024))
	require.NoError(t, err)

	assert.Equal(t, domain.LocationImagesBucket.Name, ref.Bucket)
	assert.True(t, strings.HasSuffix(ref.Key, ".png"), "key %q should keep the lowercased extension", ref.Key)

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "PUT /location-images/"+ref.Key, reqs[0])
}

func TestS3ObjectStore_Upload_UniqueKeys(t *testing.T) {
	store, _ := newTestStore(t)

	refA, err := store.Upload(context.Background(), domain.LocationImagesBucket.Name, validUpload(16))
	require.NoError(t, err)
	refB, err := store.Upload(context.Background(), domain.LocationImagesBucket.Name, validUpload(16))
	require.NoError(t, err)

	assert.NotEqual(t, refA.Key, refB.Key)
}

func TestS3ObjectStore_Upload_SizeBoundary(t *testing.T) {
	store, fake := newTestStore(t)
	ceiling := domain.LocationImagesBucket.MaxSizeBytes

	_, err := store.Upload(context.Background(), domain.LocationImagesBucket.Name, validUpload(ceiling))
	assert.NoError(t, err, "exactly at the ceiling must succeed")

	_, err = store.Upload(context.Background(), domain.LocationImagesBucket.Name, validUpload(ceiling+1))
	assert.ErrorIs(t, err, domain.ErrTooLarge)

	assert.Len(t, fake.recorded(), 1, "the oversized payload must never reach the store")
}

func TestS3ObjectStore_Upload_Rejections(t *testing.T) {
	store, fake := newTestStore(t)

	tests := []struct {
		name    string
		bucket  string
		upload  domain.FileUpload
		wantErr error
	}{
		{
			name:    "unsupported content type",
			bucket:  domain.LocationImagesBucket.Name,
			upload:  domain.FileUpload{Content: strings.NewReader("%PDF"), Size: 4, ContentType: "application/pdf", Filename: "doc.pdf"},
			wantErr: domain.ErrUnsupportedType,
		},
		{
			name:    "empty payload",
			bucket:  domain.LocationImagesBucket.Name,
			upload:  domain.FileUpload{Content: strings.NewReader(""), Size: 0, ContentType: "image/png", Filename: "empty.png"},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name:    "unknown bucket",
			bucket:  "no-such-bucket",
			upload:  validUpload(16),
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Upload(context.Background(), tt.bucket, tt.upload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, fake.recorded(), "rejected uploads must not produce any store call")
}

func TestS3ObjectStore_Delete_MissingObjectIsSuccess(t *testing.T) {
	store, fake := newTestStore(t)

	// The fake answers 204 whether or not the key ever existed, exactly like
	// S3 DeleteObject does.
	err := store.Delete(context.Background(), domain.BlobRef{
		Bucket: domain.LocationImagesBucket.Name,
		Key:    "never-uploaded.png",
	})
	assert.NoError(t, err)
	assert.Len(t, fake.recorded(), 1)
}

func TestS3ObjectStore_Delete_UnknownBucket(t *testing.T) {
	store, fake := newTestStore(t)

	err := store.Delete(context.Background(), domain.BlobRef{Bucket: "no-such-bucket", Key: "x.png"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, fake.recorded())
}

func TestS3ObjectStore_Exists(t *testing.T) {
	store, fake := newTestStore(t)
	fake.missing = map[string]bool{"/location-images/gone.png": true}

	found, err := store.Exists(context.Background(), domain.BlobRef{
		Bucket: domain.LocationImagesBucket.Name,
		Key:    "present.png",
	})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Exists(context.Background(), domain.BlobRef{
		Bucket: domain.LocationImagesBucket.Name,
		Key:    "gone.png",
	})
	require.NoError(t, err, "a missing object is a clean false, not an error")
	assert.False(t, found)

	reqs := fake.recorded()
	assert.Contains(t, reqs, "HEAD /location-images/present.png")
	assert.Contains(t, reqs, "HEAD /location-images/gone.png")
}

func TestS3ObjectStore_EnsureBuckets(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.EnsureBuckets(context.Background()))

	reqs := fake.recorded()
	// HeadBucket succeeds against the fake, so only the policy follows.
	assert.Contains(t, reqs, "HEAD /location-images")
	assert.Contains(t, reqs, "PUT /location-images")
}

func TestNewObjectKey_KeepsExtension(t *testing.T) {
	key := newObjectKey("Vacation Photo.JPEG")
	assert.True(t, strings.HasSuffix(key, ".jpeg"))
	assert.NotContains(t, key, " ")

	noExt := newObjectKey("README")
	assert.NotContains(t, noExt, ".")
}
