package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/waypointhq/waypoint/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LocationServiceImpl implements domain.LocationService. It sequences
// geocoding, blob upload and persistence so that the database never
// references a blob that does not exist: uploads happen before the record
// is written, blob deletes only after the record change has committed. The
// price is an occasional orphaned blob when a step in between fails, which
// is the cheaper failure mode.
type LocationServiceImpl struct {
	repository domain.LocationRepository
	geocoder   domain.Geocoder
	store      domain.ObjectStore
}

// NewLocationService creates a new location service
func NewLocationService(
	repository domain.LocationRepository,
	geocoder domain.Geocoder,
	store domain.ObjectStore,
) *LocationServiceImpl {
	return &LocationServiceImpl{
		repository: repository,
		geocoder:   geocoder,
		store:      store,
	}
}

// Create geocodes the address, uploads the optional image and persists the
// Location. A persistence failure after a successful upload deletes the
// fresh blob again; the geocode result needs no cleanup since the lookup is
// stateless.
func (s *LocationServiceImpl) Create(ctx context.Context, ownerID string, input domain.CreateLocationInput, upload *domain.FileUpload) (*domain.Location, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}

	coords, err := s.geocoder.Geocode(ctx, input.Address)
	if err != nil {
		return nil, err
	}

	image := domain.ImageRef{URL: input.ImageURL}
	uploaded := false
	if upload != nil {
		ref, err := s.store.Upload(ctx, domain.LocationImagesBucket.Name, *upload)
		if err != nil {
			return nil, err
		}
		image = domain.ImageRef{URL: s.store.URL(ref), Bucket: ref.Bucket, Key: ref.Key}
		uploaded = true
	}

	loc := &domain.Location{
		OwnerID:     ownerID,
		Name:        input.Name,
		Description: input.Description,
		Address:     input.Address,
		Latitude:    coords.Latitude,
		Longitude:   coords.Longitude,
		Image:       image,
	}

	if err := s.repository.Create(ctx, loc); err != nil {
		if uploaded {
			s.discardBlob(ctx, image.Blob())
		}
		return nil, err
	}

	return loc, nil
}

// Get retrieves a single Location. Reads are owner-scoped just like Update
// and Delete.
func (s *LocationServiceImpl) Get(ctx context.Context, id, ownerID string) (*domain.Location, error) {
	loc, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return loc, nil
}

// List returns one page of an owner's Locations plus the total count. The
// count and page queries are independent reads and run concurrently.
func (s *LocationServiceImpl) List(ctx context.Context, ownerID string, page, perPage int) ([]*domain.Location, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	var (
		locations []*domain.Location
		total     int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		locations, err = s.repository.FindByOwner(gctx, ownerID, int64((page-1)*perPage), int64(perPage))
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repository.CountByOwner(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return locations, total, nil
}

// Update applies partial changes. A new image (file or external URL)
// replaces the old one; KeepImage=false clears it. The previous stored blob
// is deleted only after the record update has committed, and a persistence
// failure rolls back a freshly uploaded blob.
func (s *LocationServiceImpl) Update(ctx context.Context, id, ownerID string, input domain.UpdateLocationInput, upload *domain.FileUpload) (*domain.Location, error) {
	loc, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	if input.Address != nil {
		coords, err := s.geocoder.Geocode(ctx, *input.Address)
		if err != nil {
			return nil, err
		}
		loc.Address = *input.Address
		loc.Latitude = coords.Latitude
		loc.Longitude = coords.Longitude
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
		}
		loc.Name = *input.Name
	}
	if input.Description != nil {
		loc.Description = *input.Description
	}

	// Image precedence: a new file wins, then an external URL, then an
	// explicit clear; otherwise the image stays untouched. Whatever gets
	// replaced or cleared is deleted only after the update commits.
	var obsolete *domain.BlobRef
	uploaded := false
	switch {
	case upload != nil:
		ref, err := s.store.Upload(ctx, domain.LocationImagesBucket.Name, *upload)
		if err != nil {
			return nil, err
		}
		if loc.Image.Stored() {
			old := loc.Image.Blob()
			obsolete = &old
		}
		loc.Image = domain.ImageRef{URL: s.store.URL(ref), Bucket: ref.Bucket, Key: ref.Key}
		uploaded = true

	case input.ImageURL != nil && *input.ImageURL != "":
		if loc.Image.Stored() {
			old := loc.Image.Blob()
			obsolete = &old
		}
		loc.Image = domain.ImageRef{URL: *input.ImageURL}

	case input.KeepImage != nil && !*input.KeepImage:
		if loc.Image.Stored() {
			old := loc.Image.Blob()
			obsolete = &old
		}
		loc.Image = domain.ImageRef{}
	}

	if err := s.repository.Update(ctx, loc); err != nil {
		if uploaded {
			s.discardBlob(ctx, loc.Image.Blob())
		}
		return nil, err
	}

	if obsolete != nil {
		s.discardBlob(ctx, *obsolete)
	}

	return loc, nil
}

// Delete removes the record first and cleans up its stored image after. A
// failed blob cleanup leaves an orphan, never a dangling reference.
func (s *LocationServiceImpl) Delete(ctx context.Context, id, ownerID string) error {
	loc, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if loc.OwnerID != ownerID {
		return domain.ErrForbidden
	}

	if err := s.repository.Delete(ctx, id); err != nil {
		return err
	}

	if loc.Image.Stored() {
		s.discardBlob(ctx, loc.Image.Blob())
	}

	return nil
}

// discardBlob is the best-effort cleanup path. Its failure is logged and
// swallowed so it can never mask the outcome of the primary operation.
func (s *LocationServiceImpl) discardBlob(ctx context.Context, ref domain.BlobRef) {
	if err := s.store.Delete(ctx, ref); err != nil {
		log.Printf("Warning: failed to delete blob %s/%s: %v", ref.Bucket, ref.Key, err)
	}
}
