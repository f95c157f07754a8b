package interfaces

import (
	"context"

	"tripscore/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error)
	CountByTripAndStatus(ctx context.Context, tripID primitive.ObjectID, status models.BookingStatus) (int64, error)
	GetByTrip(ctx context.Context, tripID primitive.ObjectID) ([]*models.Booking, error)
}
