package utils

import "time"

// Application Constants
const (
	AppName    = "TripScore"
	AppVersion = "1.0.0"

	// Listing
	DefaultListLimit = 10
	MaxListLimit     = 100

	// Popularity scoring
	DefaultBatchSize         = 10
	DefaultReconcileInterval = 6 * time.Hour
	DefaultFailureAlertRatio = 0.1

	// Scoring weights
	AcceptedBookingWeight = 2
	CompletedTripWeight   = 1
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrValidationFailed = "validation failed"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
)
