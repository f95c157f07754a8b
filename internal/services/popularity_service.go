package services

import (
	"context"
	"fmt"
	"sync"

	"tripscore/internal/models"
	"tripscore/internal/repositories/interfaces"
	"tripscore/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PopularityService maintains the derived popularity_score on trips.
//
// The score for an active trip is
//
//	2 * acceptedBookings(trip)
//	  + 1 if the trip is completed
//	  + sum of acceptedBookings(sibling) over other active trips on the
//	    same route
//
// It is a pure function of current store state, so recomputing is
// idempotent and concurrent recomputes of the same trip converge without
// locking: the store's last write wins and the next recompute settles it.
type PopularityService interface {
	// RecomputeTripScore recalculates and persists one trip's score.
	// Returns interfaces.ErrTripNotFound if the trip does not exist; any
	// other failure is a store error.
	RecomputeTripScore(ctx context.Context, tripID primitive.ObjectID) (*models.TripScoreResult, error)

	// ReconcileAll recomputes every active trip in bounded-concurrency
	// batches. Per-trip failures are collected in the result, never
	// propagated; only the initial trip query can fail the call.
	ReconcileAll(ctx context.Context) (*models.ReconcileResult, error)

	// ReconcileRoute recomputes all active trips on one route,
	// sequentially. The first per-trip failure aborts the remainder.
	ReconcileRoute(ctx context.Context, fromName, toName string) (*models.RouteReconcileResult, error)

	// OnBookingStatusChange and OnTripCompleted run detached from the
	// caller: they return immediately and any failure ends in a log
	// record, never at the caller.
	OnBookingStatusChange(bookingID string, newStatus models.BookingStatus, tripID primitive.ObjectID)
	OnTripCompleted(tripID primitive.ObjectID)

	// Drain blocks until all detached event tasks have finished. Called
	// on shutdown.
	Drain()

	// GetPopularTrips lists bookable trips ordered by score, optionally
	// filtered by route key, served through the cache.
	GetPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error)
}

type popularityService struct {
	tripRepo    interfaces.TripRepository
	bookingRepo interfaces.BookingRepository
	cache       CacheService
	logger      *logger.Logger
	batchSize   int
	tasks       sync.WaitGroup
}

func NewPopularityService(
	tripRepo interfaces.TripRepository,
	bookingRepo interfaces.BookingRepository,
	cache CacheService,
	log *logger.Logger,
	batchSize int,
) PopularityService {
	if batchSize <= 0 {
		batchSize = 10
	}

	return &popularityService{
		tripRepo:    tripRepo,
		bookingRepo: bookingRepo,
		cache:       cache,
		logger:      log,
		batchSize:   batchSize,
	}
}

func (s *popularityService) RecomputeTripScore(ctx context.Context, tripID primitive.ObjectID) (*models.TripScoreResult, error) {
	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	acceptedCount, err := s.bookingRepo.CountByTripAndStatus(ctx, trip.ID, models.BookingStatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to count accepted bookings: %w", err)
	}

	completedComponent := 0
	if trip.Status == models.TripStatusCompleted {
		completedComponent = 1
	}

	routeKey := trip.DeriveRouteKey()

	siblings, err := s.tripRepo.GetActiveTripsByRouteKey(ctx, routeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query route trips: %w", err)
	}

	repeatComponent := 0
	for _, sibling := range siblings {
		if sibling.ID == trip.ID {
			continue
		}
		count, err := s.bookingRepo.CountByTripAndStatus(ctx, sibling.ID, models.BookingStatusAccepted)
		if err != nil {
			return nil, fmt.Errorf("failed to count route bookings: %w", err)
		}
		repeatComponent += int(count)
	}

	score := 2*int(acceptedCount) + completedComponent + repeatComponent

	if err := s.tripRepo.UpdatePopularity(ctx, trip.ID, score, routeKey); err != nil {
		return nil, err
	}

	s.logger.LogScoreUpdate(trip.ID, score, routeKey, map[string]interface{}{
		"accepted":  int(acceptedCount),
		"completed": completedComponent,
		"repeat":    repeatComponent,
	})

	return &models.TripScoreResult{
		TripID:          trip.ID,
		PopularityScore: score,
	}, nil
}

func (s *popularityService) ReconcileAll(ctx context.Context) (*models.ReconcileResult, error) {
	trips, err := s.tripRepo.GetActiveTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query active trips: %w", err)
	}

	result := &models.ReconcileResult{TotalTrips: len(trips)}

	if len(trips) == 0 {
		s.logger.Info("No active trips to reconcile")
		return result, nil
	}

	s.logger.Infof("Reconciling popularity for %d trips", len(trips))

	var mu sync.Mutex

	// Groups run back to back; members of a group run concurrently. This
	// keeps at most batchSize recomputations in flight against the store.
	for i := 0; i < len(trips); i += s.batchSize {
		end := i + s.batchSize
		if end > len(trips) {
			end = len(trips)
		}

		var wg sync.WaitGroup
		for _, trip := range trips[i:end] {
			wg.Add(1)
			go func(tripID primitive.ObjectID) {
				defer wg.Done()

				_, err := s.RecomputeTripScore(ctx, tripID)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.FailedCount++
					result.Errors = append(result.Errors, models.TripScoreError{
						TripID: tripID,
						Error:  err.Error(),
					})
				} else {
					result.SuccessCount++
				}
			}(trip.ID)
		}
		wg.Wait()

		s.logger.Debugf("Reconcile progress: %d/%d trips processed", end, len(trips))
	}

	if result.FailedCount > 0 {
		s.logger.WithField("errors", result.Errors).Warnf(
			"Reconciliation finished with %d failures out of %d trips", result.FailedCount, result.TotalTrips)
	}

	return result, nil
}

func (s *popularityService) ReconcileRoute(ctx context.Context, fromName, toName string) (*models.RouteReconcileResult, error) {
	routeKey := models.RouteKey(fromName, toName)

	trips, err := s.tripRepo.GetActiveTripsByRouteKey(ctx, routeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips for route %s: %w", routeKey, err)
	}

	s.logger.WithRouteKey(routeKey).Infof("Reconciling popularity for %d trips on route", len(trips))

	updated := 0
	for _, trip := range trips {
		if _, err := s.RecomputeTripScore(ctx, trip.ID); err != nil {
			return nil, fmt.Errorf("failed to recompute trip %s on route %s: %w", trip.ID.Hex(), routeKey, err)
		}
		updated++
	}

	return &models.RouteReconcileResult{
		UpdatedCount: updated,
		RouteKey:     routeKey,
	}, nil
}

func (s *popularityService) OnBookingStatusChange(bookingID string, newStatus models.BookingStatus, tripID primitive.ObjectID) {
	// Pending and rejected bookings were never counted, so those
	// transitions cannot move a score.
	if newStatus != models.BookingStatusAccepted && newStatus != models.BookingStatusCancelled {
		return
	}

	log := s.logger.WithBookingID(bookingID).WithTripID(tripID).WithField("new_status", string(newStatus))
	log.Info("Booking status changed, recomputing trip popularity")

	s.spawn(func(ctx context.Context) {
		if _, err := s.RecomputeTripScore(ctx, tripID); err != nil {
			log.WithError(err).Error("Background popularity update failed")
		}
	})
}

func (s *popularityService) OnTripCompleted(tripID primitive.ObjectID) {
	log := s.logger.WithTripID(tripID)
	log.Info("Trip completed, recomputing popularity")

	s.spawn(func(ctx context.Context) {
		if _, err := s.RecomputeTripScore(ctx, tripID); err != nil {
			log.WithError(err).Error("Background popularity update failed")
			return
		}

		// Completion deliberately re-settles the whole route, not just
		// the completing trip.
		trip, err := s.tripRepo.GetByID(ctx, tripID)
		if err != nil {
			log.WithError(err).Error("Failed to load completed trip for route refresh")
			return
		}

		if _, err := s.ReconcileRoute(ctx, trip.FromLocation.Name, trip.ToLocation.Name); err != nil {
			log.WithError(err).Error("Background route reconciliation failed")
		}
	})
}

// spawn runs fn detached from any request context. The task gets a fresh
// background context so a caller's cancellation or request-scoped values
// never leak into it.
func (s *popularityService) spawn(fn func(ctx context.Context)) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn(context.Background())
	}()
}

func (s *popularityService) Drain() {
	s.tasks.Wait()
}

func (s *popularityService) GetPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error) {
	if s.cache != nil {
		if trips, err := s.cache.GetCachedPopularTrips(ctx, routeKey, limit); err == nil {
			return trips, nil
		}
	}

	trips, err := s.tripRepo.GetPopularTrips(ctx, routeKey, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CachePopularTrips(ctx, routeKey, limit, trips); err != nil {
			s.logger.WithError(err).Warn("Failed to cache popular trips listing")
		}
	}

	return trips, nil
}
