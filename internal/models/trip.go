package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TripStatus string

const (
	TripStatusScheduled TripStatus = "scheduled"
	TripStatusStarted   TripStatus = "started"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// ActiveTripStatuses are the statuses eligible for popularity scoring.
// Cancelled trips are excluded everywhere.
var ActiveTripStatuses = []TripStatus{
	TripStatusScheduled,
	TripStatusStarted,
	TripStatusCompleted,
}

type Location struct {
	Name      string  `json:"name" bson:"name" validate:"required"`
	Address   string  `json:"address,omitempty" bson:"address,omitempty"`
	Latitude  float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
}

type Trip struct {
	ID                   primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	DriverID             *primitive.ObjectID `json:"driver_id" bson:"driver_id"`
	FromLocation         Location            `json:"from_location" bson:"from_location" validate:"required"`
	ToLocation           Location            `json:"to_location" bson:"to_location" validate:"required"`
	Status               TripStatus          `json:"status" bson:"status" default:"scheduled"`
	DepartureTime        *time.Time          `json:"departure_time" bson:"departure_time"`
	SeatsTotal           int                 `json:"seats_total" bson:"seats_total"`
	SeatsBooked          int                 `json:"seats_booked" bson:"seats_booked"`
	PricePerSeat         float64             `json:"price_per_seat" bson:"price_per_seat"`
	PopularityScore      int                 `json:"popularity_score" bson:"popularity_score"`
	RouteKey             string              `json:"route_key" bson:"route_key"`
	LastPopularityUpdate *time.Time          `json:"last_popularity_update" bson:"last_popularity_update"`
	CreatedAt            time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" bson:"updated_at"`
}

// RouteKey derives the route identity from two location names. The
// separator is a plain underscore and names are not escaped, so a name
// containing "_" can collide with a different pair; that matches how the
// key is stored and queried.
func RouteKey(fromName, toName string) string {
	return fromName + "_" + toName
}

// DeriveRouteKey returns the key for the trip's current locations, which
// may differ from the persisted Trip.RouteKey until the next popularity
// recompute writes it back.
func (t *Trip) DeriveRouteKey() string {
	return RouteKey(t.FromLocation.Name, t.ToLocation.Name)
}

func (t *Trip) IsActive() bool {
	switch t.Status {
	case TripStatusScheduled, TripStatusStarted, TripStatusCompleted:
		return true
	}
	return false
}
