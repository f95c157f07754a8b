package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TripID    primitive.ObjectID `json:"trip_id" bson:"trip_id" validate:"required"`
	RiderID   primitive.ObjectID `json:"rider_id" bson:"rider_id" validate:"required"`
	Status    BookingStatus      `json:"status" bson:"status" default:"pending"`
	Seats     int                `json:"seats" bson:"seats" default:"1"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}
