package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/waypointhq/waypoint/internal/domain"
)

const locationCollection = "locations"

// MongoLocationRepository implements domain.LocationRepository using MongoDB
type MongoLocationRepository struct {
	collection *mongo.Collection
}

// NewMongoLocationRepository creates a new MongoDB repository
func NewMongoLocationRepository(db *mongo.Database) *MongoLocationRepository {
	collection := db.Collection(locationCollection)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Index on owner_id and created_at for owner-scoped listing
	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "owner_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	}
	_, _ = collection.Indexes().CreateOne(ctx, indexModel)

	return &MongoLocationRepository{
		collection: collection,
	}
}

// Create saves a new Location
func (r *MongoLocationRepository) Create(ctx context.Context, loc *domain.Location) error {
	if loc.ID == "" {
		loc.ID = primitive.NewObjectID().Hex()
	}

	now := time.Now().UTC()
	loc.CreatedAt = now
	loc.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, loc); err != nil {
		return fmt.Errorf("%w: insert location: %v", domain.ErrPersistFailed, err)
	}
	return nil
}

// GetByID retrieves a Location by its ID
func (r *MongoLocationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&loc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: location %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: find location: %v", domain.ErrPersistFailed, err)
	}
	return &loc, nil
}

// Update replaces the stored document with the given Location
func (r *MongoLocationRepository) Update(ctx context.Context, loc *domain.Location) error {
	loc.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": loc.ID}, loc)
	if err != nil {
		return fmt.Errorf("%w: update location: %v", domain.ErrPersistFailed, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: location %s", domain.ErrNotFound, loc.ID)
	}
	return nil
}

// Delete removes a Location by its ID
func (r *MongoLocationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%w: delete location: %v", domain.ErrPersistFailed, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: location %s", domain.ErrNotFound, id)
	}
	return nil
}

// FindByOwner retrieves a page of an owner's Locations, newest first
func (r *MongoLocationRepository) FindByOwner(ctx context.Context, ownerID string, skip, limit int64) ([]*domain.Location, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find locations: %v", domain.ErrPersistFailed, err)
	}
	defer cursor.Close(ctx)

	locations := []*domain.Location{}
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("%w: decode locations: %v", domain.ErrPersistFailed, err)
	}
	return locations, nil
}

// CountByOwner counts an owner's Locations
func (r *MongoLocationRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("%w: count locations: %v", domain.ErrPersistFailed, err)
	}
	return count, nil
}
