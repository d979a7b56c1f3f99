package domain

import (
	"testing"
)

func TestImageRef_Stored(t *testing.T) {
	tests := []struct {
		name   string
		ref    ImageRef
		stored bool
		empty  bool
	}{
		{
			name:   "store-managed image",
			ref:    ImageRef{URL: "http://s3.local/location-images/abc.png", Bucket: "location-images", Key: "abc.png"},
			stored: true,
		},
		{
			name: "external image",
			ref:  ImageRef{URL: "https://example.com/photo.jpg"},
		},
		{
			// A hostile external URL containing the bucket name must not be
			// mistaken for a store-managed reference.
			name: "external URL containing bucket name",
			ref:  ImageRef{URL: "https://evil.example.com/location-images/abc.png"},
		},
		{
			name:  "no image",
			ref:   ImageRef{},
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Stored(); got != tt.stored {
				t.Errorf("Stored() = %v, want %v", got, tt.stored)
			}
			if got := tt.ref.Empty(); got != tt.empty {
				t.Errorf("Empty() = %v, want %v", got, tt.empty)
			}
		})
	}
}

func TestBucketSpec_Allows(t *testing.T) {
	b := LocationImagesBucket

	for _, ct := range []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml"} {
		if !b.Allows(ct) {
			t.Errorf("Allows(%q) = false, want true", ct)
		}
	}
	for _, ct := range []string{"application/pdf", "text/html", "image/heic", ""} {
		if b.Allows(ct) {
			t.Errorf("Allows(%q) = true, want false", ct)
		}
	}
}

func TestBucketByName(t *testing.T) {
	if _, ok := BucketByName("location-images"); !ok {
		t.Error("BucketByName(location-images) not found")
	}
	if _, ok := BucketByName("unknown"); ok {
		t.Error("BucketByName(unknown) unexpectedly found")
	}
}
