package interfaces

import (
	"context"
	"errors"

	"tripscore/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrTripNotFound is returned when a referenced trip does not exist. Any
// other repository failure is a store error and wraps the driver error.
var ErrTripNotFound = errors.New("trip not found")

type TripRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error)

	// Scoring queries
	GetActiveTrips(ctx context.Context) ([]*models.Trip, error)
	GetActiveTripsByRouteKey(ctx context.Context, routeKey string) ([]*models.Trip, error)

	// Listing
	GetPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error)

	// UpdatePopularity persists the derived fields as a single partial
	// update; last_popularity_update is assigned by the server.
	UpdatePopularity(ctx context.Context, id primitive.ObjectID, score int, routeKey string) error
}
