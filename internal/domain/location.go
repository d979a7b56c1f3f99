package domain

import (
	"context"
	"time"
)

// ImageRef is the image value of a Location. It is either externally hosted
// (URL only) or store-managed (URL plus the bucket/key pair the blob lives
// under). Keeping the structured pair alongside the URL means "is this ours"
// never has to be answered by string-matching the URL.
type ImageRef struct {
	URL    string `bson:"url,omitempty" json:"url,omitempty"`
	Bucket string `bson:"bucket,omitempty" json:"-"`
	Key    string `bson:"key,omitempty" json:"-"`
}

// Stored reports whether the image blob is owned by this service's store.
func (r ImageRef) Stored() bool {
	return r.Key != ""
}

// Empty reports whether the Location has no image at all.
func (r ImageRef) Empty() bool {
	return r.URL == "" && r.Key == ""
}

// Blob returns the store reference of a stored image.
func (r ImageRef) Blob() BlobRef {
	return BlobRef{Bucket: r.Bucket, Key: r.Key}
}

// Location is a named place with geocoded coordinates and an optional image.
// Latitude/Longitude are populated only by geocoding the address, never
// supplied by callers directly; they are always both present or both absent.
type Location struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	OwnerID     string    `bson:"owner_id" json:"owner_id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Address     string    `bson:"address" json:"address"`
	Latitude    float64   `bson:"latitude" json:"latitude"`
	Longitude   float64   `bson:"longitude" json:"longitude"`
	Image       ImageRef  `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// CreateLocationInput carries the caller-supplied fields for a new Location.
// ImageURL is an externally hosted image link, used only when no file is
// uploaded alongside the request.
type CreateLocationInput struct {
	Name        string
	Description string
	Address     string
	ImageURL    string
}

// UpdateLocationInput carries partial updates. Nil pointers mean "leave
// untouched". KeepImage set to false clears the image when no replacement
// (file or ImageURL) is supplied.
type UpdateLocationInput struct {
	Name        *string
	Description *string
	Address     *string
	ImageURL    *string
	KeepImage   *bool
}

// LocationRepository defines the interface for Location persistence.
type LocationRepository interface {
	Create(ctx context.Context, loc *Location) error
	GetByID(ctx context.Context, id string) (*Location, error)
	Update(ctx context.Context, loc *Location) error
	Delete(ctx context.Context, id string) error
	FindByOwner(ctx context.Context, ownerID string, skip, limit int64) ([]*Location, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}

// LocationService coordinates geocoding, blob storage and persistence for
// the Location lifecycle, compensating already-applied side effects when a
// later step fails.
type LocationService interface {
	Create(ctx context.Context, ownerID string, input CreateLocationInput, upload *FileUpload) (*Location, error)
	Get(ctx context.Context, id, ownerID string) (*Location, error)
	List(ctx context.Context, ownerID string, page, perPage int) ([]*Location, int64, error)
	Update(ctx context.Context, id, ownerID string, input UpdateLocationInput, upload *FileUpload) (*Location, error)
	Delete(ctx context.Context, id, ownerID string) error
}
