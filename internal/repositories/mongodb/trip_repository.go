package mongodb

import (
	"context"
	"fmt"

	"tripscore/internal/models"
	"tripscore/internal/repositories/interfaces"
	"tripscore/internal/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type tripRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewTripRepository(db *mongo.Database, cache services.CacheService) interfaces.TripRepository {
	return &tripRepository{
		collection: db.Collection("trips"),
		cache:      cache,
	}
}

// GetByID always reads the store. Scores are a function of current
// trip state, so a cached copy with a stale status must never feed a
// recompute.
func (r *tripRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	var trip models.Trip
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trip)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, interfaces.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	return &trip, nil
}

func (r *tripRepository) GetActiveTrips(ctx context.Context) ([]*models.Trip, error) {
	filter := bson.M{
		"status": bson.M{"$in": models.ActiveTripStatuses},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find active trips: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeTrips(ctx, cursor)
}

func (r *tripRepository) GetActiveTripsByRouteKey(ctx context.Context, routeKey string) ([]*models.Trip, error) {
	filter := bson.M{
		"route_key": routeKey,
		"status":    bson.M{"$in": models.ActiveTripStatuses},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find trips for route %s: %w", routeKey, err)
	}
	defer cursor.Close(ctx)

	return decodeTrips(ctx, cursor)
}

func (r *tripRepository) GetPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error) {
	// Completed trips keep their score but are not bookable, so the
	// listing only shows scheduled and started trips.
	filter := bson.M{
		"status": bson.M{"$in": []models.TripStatus{
			models.TripStatusScheduled,
			models.TripStatusStarted,
		}},
	}
	if routeKey != "" {
		filter["route_key"] = routeKey
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "popularity_score", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find popular trips: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeTrips(ctx, cursor)
}

func (r *tripRepository) UpdatePopularity(ctx context.Context, id primitive.ObjectID, score int, routeKey string) error {
	// Partial field update only; last_popularity_update is assigned by
	// the server so clocks across instances cannot disagree.
	update := bson.M{
		"$set": bson.M{
			"popularity_score": score,
			"route_key":        routeKey,
		},
		"$currentDate": bson.M{
			"last_popularity_update": true,
		},
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update trip popularity: %w", err)
	}

	r.invalidateListingCache(ctx)

	return nil
}

func decodeTrips(ctx context.Context, cursor *mongo.Cursor) ([]*models.Trip, error) {
	var trips []*models.Trip
	for cursor.Next(ctx) {
		var trip models.Trip
		if err := cursor.Decode(&trip); err != nil {
			return nil, fmt.Errorf("failed to decode trip: %w", err)
		}
		trips = append(trips, &trip)
	}

	return trips, nil
}

// invalidateListingCache drops cached popular-trips listings after a
// score write. Best effort: a failed invalidation only extends listing
// staleness by the cache TTL.
func (r *tripRepository) invalidateListingCache(ctx context.Context) {
	if r.cache != nil {
		r.cache.InvalidatePopularTrips(ctx)
	}
}
