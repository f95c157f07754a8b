package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// TripScoreResult is the outcome of a single trip recomputation.
type TripScoreResult struct {
	TripID          primitive.ObjectID `json:"trip_id"`
	PopularityScore int                `json:"popularity_score"`
}

// TripScoreError records one failed recomputation inside a batch run.
type TripScoreError struct {
	TripID primitive.ObjectID `json:"trip_id"`
	Error  string             `json:"error"`
}

// ReconcileResult aggregates a full reconciliation run. Per-trip failures
// are collected here, never propagated out of the run.
type ReconcileResult struct {
	TotalTrips   int              `json:"total_trips"`
	SuccessCount int              `json:"success_count"`
	FailedCount  int              `json:"failed_count"`
	Errors       []TripScoreError `json:"errors,omitempty"`
}

// RouteReconcileResult reports a route-scoped refresh.
type RouteReconcileResult struct {
	UpdatedCount int    `json:"updated_count"`
	RouteKey     string `json:"route_key"`
}

// BookingStatusChangedEvent is the webhook payload for a booking status
// transition. Only accepted and cancelled transitions affect scores;
// rejected is accepted at the boundary but ignored by the dispatcher.
type BookingStatusChangedEvent struct {
	BookingID string `json:"booking_id" binding:"required"`
	NewStatus string `json:"new_status" binding:"required,oneof=accepted rejected cancelled"`
	TripID    string `json:"trip_id" binding:"required"`
}

// TripCompletedEvent is the webhook payload for a trip completion.
type TripCompletedEvent struct {
	TripID string `json:"trip_id" binding:"required"`
}

// UpdateRouteRequest is the admin payload for a route-scoped refresh.
type UpdateRouteRequest struct {
	FromLocation string `json:"from_location" binding:"required"`
	ToLocation   string `json:"to_location" binding:"required"`
}
