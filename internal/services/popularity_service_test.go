package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"tripscore/internal/models"
	"tripscore/internal/repositories/interfaces"
	"tripscore/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeTripRepo is an in-memory TripRepository. Trips listed in phantoms
// appear in GetActiveTrips but not in GetByID, simulating a document
// deleted between the batch query and the per-trip read.
type fakeTripRepo struct {
	mu          sync.Mutex
	trips       map[primitive.ObjectID]*models.Trip
	order       []primitive.ObjectID
	phantoms    []primitive.ObjectID
	failUpdate  map[primitive.ObjectID]error
	updateCalls map[primitive.ObjectID]int
	listCalls   int

	inFlight    int
	maxInFlight int
	readDelay   time.Duration
}

func newFakeTripRepo() *fakeTripRepo {
	return &fakeTripRepo{
		trips:       make(map[primitive.ObjectID]*models.Trip),
		failUpdate:  make(map[primitive.ObjectID]error),
		updateCalls: make(map[primitive.ObjectID]int),
	}
}

func (r *fakeTripRepo) add(trip *models.Trip) *models.Trip {
	r.mu.Lock()
	defer r.mu.Unlock()
	if trip.ID.IsZero() {
		trip.ID = primitive.NewObjectID()
	}
	r.trips[trip.ID] = trip
	r.order = append(r.order, trip.ID)
	return trip
}

func (r *fakeTripRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.maxInFlight {
		r.maxInFlight = r.inFlight
	}
	delay := r.readDelay
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight--

	trip, ok := r.trips[id]
	if !ok {
		return nil, interfaces.ErrTripNotFound
	}
	copied := *trip
	return &copied, nil
}

func (r *fakeTripRepo) GetActiveTrips(ctx context.Context) ([]*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Trip
	for _, id := range r.order {
		trip := r.trips[id]
		if trip.IsActive() {
			copied := *trip
			result = append(result, &copied)
		}
	}
	for _, id := range r.phantoms {
		result = append(result, &models.Trip{ID: id, Status: models.TripStatusScheduled})
	}
	return result, nil
}

func (r *fakeTripRepo) GetActiveTripsByRouteKey(ctx context.Context, routeKey string) ([]*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Trip
	for _, id := range r.order {
		trip := r.trips[id]
		if trip.IsActive() && trip.RouteKey == routeKey {
			copied := *trip
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeTripRepo) GetPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++

	var result []*models.Trip
	for _, id := range r.order {
		trip := r.trips[id]
		if trip.Status != models.TripStatusScheduled && trip.Status != models.TripStatusStarted {
			continue
		}
		if routeKey != "" && trip.RouteKey != routeKey {
			continue
		}
		copied := *trip
		result = append(result, &copied)
	}
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].PopularityScore > result[i].PopularityScore {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	if int64(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeTripRepo) UpdatePopularity(ctx context.Context, id primitive.ObjectID, score int, routeKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.failUpdate[id]; ok {
		return err
	}

	trip, ok := r.trips[id]
	if !ok {
		return interfaces.ErrTripNotFound
	}

	now := time.Now()
	trip.PopularityScore = score
	trip.RouteKey = routeKey
	trip.LastPopularityUpdate = &now
	r.updateCalls[id]++
	return nil
}

func (r *fakeTripRepo) updateCount(id primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateCalls[id]
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings []*models.Booking
}

func (r *fakeBookingRepo) add(tripID primitive.ObjectID, status models.BookingStatus, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < count; i++ {
		r.bookings = append(r.bookings, &models.Booking{
			ID:     primitive.NewObjectID(),
			TripID: tripID,
			Status: status,
		})
	}
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, errors.New("booking not found")
}

func (r *fakeBookingRepo) CountByTripAndStatus(ctx context.Context, tripID primitive.ObjectID, status models.BookingStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, b := range r.bookings {
		if b.TripID == tripID && b.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeBookingRepo) GetByTrip(ctx context.Context, tripID primitive.ObjectID) ([]*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Booking
	for _, b := range r.bookings {
		if b.TripID == tripID {
			result = append(result, b)
		}
	}
	return result, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	require.NoError(t, err)
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, trips *fakeTripRepo, bookings *fakeBookingRepo) PopularityService {
	t.Helper()
	return NewPopularityService(trips, bookings, nil, newTestLogger(t), 10)
}

func scheduledTrip(from, to string) *models.Trip {
	return &models.Trip{
		FromLocation: models.Location{Name: from},
		ToLocation:   models.Location{Name: to},
		Status:       models.TripStatusScheduled,
		RouteKey:     models.RouteKey(from, to),
	}
}

func TestRecomputeTripScore(t *testing.T) {
	t.Run("computes the documented example", func(t *testing.T) {
		trips := newFakeTripRepo()
		bookings := &fakeBookingRepo{}

		tripA := scheduledTrip("Cairo", "Alexandria")
		tripA.Status = models.TripStatusCompleted
		trips.add(tripA)
		tripB := trips.add(scheduledTrip("Cairo", "Alexandria"))

		bookings.add(tripA.ID, models.BookingStatusAccepted, 3)
		bookings.add(tripB.ID, models.BookingStatusAccepted, 2)

		svc := newTestService(t, trips, bookings)

		resultA, err := svc.RecomputeTripScore(context.Background(), tripA.ID)
		require.NoError(t, err)
		require.Equal(t, 9, resultA.PopularityScore) // 2*3 + 1 + 2

		resultB, err := svc.RecomputeTripScore(context.Background(), tripB.ID)
		require.NoError(t, err)
		require.Equal(t, 7, resultB.PopularityScore) // 2*2 + 0 + 3
	})

	t.Run("is idempotent without data changes", func(t *testing.T) {
		trips := newFakeTripRepo()
		bookings := &fakeBookingRepo{}
		trip := trips.add(scheduledTrip("Cairo", "Luxor"))
		bookings.add(trip.ID, models.BookingStatusAccepted, 4)

		svc := newTestService(t, trips, bookings)

		first, err := svc.RecomputeTripScore(context.Background(), trip.ID)
		require.NoError(t, err)
		second, err := svc.RecomputeTripScore(context.Background(), trip.ID)
		require.NoError(t, err)

		require.Equal(t, first.PopularityScore, second.PopularityScore)
		require.Equal(t, 2, trips.updateCount(trip.ID))
	})

	t.Run("ignores cancelled siblings", func(t *testing.T) {
		trips := newFakeTripRepo()
		bookings := &fakeBookingRepo{}
		trip := trips.add(scheduledTrip("Cairo", "Aswan"))

		cancelled := scheduledTrip("Cairo", "Aswan")
		cancelled.Status = models.TripStatusCancelled
		trips.add(cancelled)
		bookings.add(cancelled.ID, models.BookingStatusAccepted, 5)

		svc := newTestService(t, trips, bookings)

		result, err := svc.RecomputeTripScore(context.Background(), trip.ID)
		require.NoError(t, err)
		require.Equal(t, 0, result.PopularityScore)
	})

	t.Run("counts only accepted bookings", func(t *testing.T) {
		trips := newFakeTripRepo()
		bookings := &fakeBookingRepo{}
		trip := trips.add(scheduledTrip("Giza", "Fayoum"))

		bookings.add(trip.ID, models.BookingStatusAccepted, 2)
		bookings.add(trip.ID, models.BookingStatusPending, 3)
		bookings.add(trip.ID, models.BookingStatusRejected, 4)
		bookings.add(trip.ID, models.BookingStatusCancelled, 5)

		svc := newTestService(t, trips, bookings)

		result, err := svc.RecomputeTripScore(context.Background(), trip.ID)
		require.NoError(t, err)
		require.Equal(t, 4, result.PopularityScore)
	})

	t.Run("returns not found for a missing trip", func(t *testing.T) {
		svc := newTestService(t, newFakeTripRepo(), &fakeBookingRepo{})

		_, err := svc.RecomputeTripScore(context.Background(), primitive.NewObjectID())
		require.ErrorIs(t, err, interfaces.ErrTripNotFound)
	})

	t.Run("rewrites the route key from current locations", func(t *testing.T) {
		trips := newFakeTripRepo()
		trip := trips.add(scheduledTrip("Cairo", "Alexandria"))
		trip.RouteKey = "Old_Key"

		svc := newTestService(t, trips, &fakeBookingRepo{})

		_, err := svc.RecomputeTripScore(context.Background(), trip.ID)
		require.NoError(t, err)

		stored, err := trips.GetByID(context.Background(), trip.ID)
		require.NoError(t, err)
		require.Equal(t, "Cairo_Alexandria", stored.RouteKey)
		require.NotNil(t, stored.LastPopularityUpdate)
	})
}

func TestReconcileAll(t *testing.T) {
	t.Run("returns zero result when no active trips", func(t *testing.T) {
		svc := newTestService(t, newFakeTripRepo(), &fakeBookingRepo{})

		result, err := svc.ReconcileAll(context.Background())
		require.NoError(t, err)
		require.Equal(t, &models.ReconcileResult{}, result)
	})

	t.Run("collects per-trip failures without aborting", func(t *testing.T) {
		trips := newFakeTripRepo()
		bookings := &fakeBookingRepo{}
		for i := 0; i < 7; i++ {
			trips.add(scheduledTrip("Cairo", "Alexandria"))
		}
		phantom := primitive.NewObjectID()
		trips.phantoms = append(trips.phantoms, phantom)

		svc := newTestService(t, trips, bookings)

		result, err := svc.ReconcileAll(context.Background())
		require.NoError(t, err)
		require.Equal(t, 8, result.TotalTrips)
		require.Equal(t, 7, result.SuccessCount)
		require.Equal(t, 1, result.FailedCount)
		require.Len(t, result.Errors, 1)
		require.Equal(t, phantom, result.Errors[0].TripID)
	})

	t.Run("bounds in-flight recomputations to the batch size", func(t *testing.T) {
		trips := newFakeTripRepo()
		trips.readDelay = 2 * time.Millisecond
		for i := 0; i < 25; i++ {
			trips.add(scheduledTrip("Cairo", "Alexandria"))
		}

		svc := NewPopularityService(trips, &fakeBookingRepo{}, nil, newTestLogger(t), 10)

		_, err := svc.ReconcileAll(context.Background())
		require.NoError(t, err)
		require.LessOrEqual(t, trips.maxInFlight, 10)
	})
}

func TestReconcileRoute(t *testing.T) {
	t.Run("updates every active trip on the route", func(t *testing.T) {
		trips := newFakeTripRepo()
		a := trips.add(scheduledTrip("Cairo", "Alexandria"))
		b := trips.add(scheduledTrip("Cairo", "Alexandria"))
		other := trips.add(scheduledTrip("Cairo", "Luxor"))

		svc := newTestService(t, trips, &fakeBookingRepo{})

		result, err := svc.ReconcileRoute(context.Background(), "Cairo", "Alexandria")
		require.NoError(t, err)
		require.Equal(t, 2, result.UpdatedCount)
		require.Equal(t, "Cairo_Alexandria", result.RouteKey)
		require.Equal(t, 1, trips.updateCount(a.ID))
		require.Equal(t, 1, trips.updateCount(b.ID))
		require.Equal(t, 0, trips.updateCount(other.ID))
	})

	t.Run("aborts the remaining sequence on first failure", func(t *testing.T) {
		trips := newFakeTripRepo()
		first := trips.add(scheduledTrip("Cairo", "Alexandria"))
		second := trips.add(scheduledTrip("Cairo", "Alexandria"))
		third := trips.add(scheduledTrip("Cairo", "Alexandria"))
		trips.failUpdate[second.ID] = context.DeadlineExceeded

		svc := newTestService(t, trips, &fakeBookingRepo{})

		_, err := svc.ReconcileRoute(context.Background(), "Cairo", "Alexandria")
		require.Error(t, err)
		require.Equal(t, 1, trips.updateCount(first.ID))
		require.Equal(t, 0, trips.updateCount(third.ID))
	})
}

func TestOnBookingStatusChange(t *testing.T) {
	t.Run("accepted triggers a recompute", func(t *testing.T) {
		trips := newFakeTripRepo()
		trip := trips.add(scheduledTrip("Cairo", "Alexandria"))

		svc := newTestService(t, trips, &fakeBookingRepo{})

		svc.OnBookingStatusChange("bk-1", models.BookingStatusAccepted, trip.ID)
		svc.Drain()

		require.Equal(t, 1, trips.updateCount(trip.ID))
	})

	t.Run("cancelled triggers a recompute", func(t *testing.T) {
		trips := newFakeTripRepo()
		trip := trips.add(scheduledTrip("Cairo", "Alexandria"))

		svc := newTestService(t, trips, &fakeBookingRepo{})

		svc.OnBookingStatusChange("bk-1", models.BookingStatusCancelled, trip.ID)
		svc.Drain()

		require.Equal(t, 1, trips.updateCount(trip.ID))
	})

	t.Run("pending and rejected are ignored", func(t *testing.T) {
		trips := newFakeTripRepo()
		trip := trips.add(scheduledTrip("Cairo", "Alexandria"))

		svc := newTestService(t, trips, &fakeBookingRepo{})

		svc.OnBookingStatusChange("bk-1", models.BookingStatusPending, trip.ID)
		svc.OnBookingStatusChange("bk-1", models.BookingStatusRejected, trip.ID)
		svc.Drain()

		require.Equal(t, 0, trips.updateCount(trip.ID))
	})

	t.Run("never raises to the caller", func(t *testing.T) {
		svc := newTestService(t, newFakeTripRepo(), &fakeBookingRepo{})

		// The underlying trip is missing; the failure must end in the log.
		svc.OnBookingStatusChange("bk-1", models.BookingStatusAccepted, primitive.NewObjectID())
		svc.Drain()
	})
}

func TestOnTripCompleted(t *testing.T) {
	t.Run("refreshes the whole route", func(t *testing.T) {
		trips := newFakeTripRepo()
		completed := scheduledTrip("Cairo", "Alexandria")
		completed.Status = models.TripStatusCompleted
		trips.add(completed)
		siblingA := trips.add(scheduledTrip("Cairo", "Alexandria"))
		siblingB := trips.add(scheduledTrip("Cairo", "Alexandria"))
		other := trips.add(scheduledTrip("Cairo", "Luxor"))

		svc := newTestService(t, trips, &fakeBookingRepo{})

		svc.OnTripCompleted(completed.ID)
		svc.Drain()

		// The completing trip is recomputed directly and again during the
		// route pass; each sibling exactly once; other routes untouched.
		require.Equal(t, 2, trips.updateCount(completed.ID))
		require.Equal(t, 1, trips.updateCount(siblingA.ID))
		require.Equal(t, 1, trips.updateCount(siblingB.ID))
		require.Equal(t, 0, trips.updateCount(other.ID))
	})

	t.Run("never raises to the caller", func(t *testing.T) {
		svc := newTestService(t, newFakeTripRepo(), &fakeBookingRepo{})

		svc.OnTripCompleted(primitive.NewObjectID())
		svc.Drain()
	})
}

type fakeCache struct {
	mu      sync.Mutex
	popular map[string][]*models.Trip
}

func newFakeCache() *fakeCache {
	return &fakeCache{popular: make(map[string][]*models.Trip)}
}

func (c *fakeCache) key(routeKey string, limit int64) string {
	return routeKey + "|" + strconv.FormatInt(limit, 10)
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error { return ErrCacheMiss }
func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (c *fakeCache) Delete(ctx context.Context, keys ...string) error { return nil }
func (c *fakeCache) Ping(ctx context.Context) error                   { return nil }

func (c *fakeCache) CachePopularTrips(ctx context.Context, routeKey string, limit int64, trips []*models.Trip) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.popular[c.key(routeKey, limit)] = trips
	return nil
}

func (c *fakeCache) GetCachedPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	trips, ok := c.popular[c.key(routeKey, limit)]
	if !ok {
		return nil, ErrCacheMiss
	}
	return trips, nil
}

func (c *fakeCache) InvalidatePopularTrips(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.popular = make(map[string][]*models.Trip)
	return nil
}

func TestGetPopularTripsServedFromCache(t *testing.T) {
	trips := newFakeTripRepo()
	trip := trips.add(scheduledTrip("Cairo", "Alexandria"))
	trip.PopularityScore = 3

	cache := newFakeCache()
	svc := NewPopularityService(trips, &fakeBookingRepo{}, cache, newTestLogger(t), 10)

	first, err := svc.GetPopularTrips(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, trips.listCalls)

	second, err := svc.GetPopularTrips(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, trips.listCalls, "second read should hit the cache")
}

func TestGetPopularTrips(t *testing.T) {
	trips := newFakeTripRepo()
	low := trips.add(scheduledTrip("Cairo", "Alexandria"))
	low.PopularityScore = 1
	high := trips.add(scheduledTrip("Cairo", "Alexandria"))
	high.PopularityScore = 9
	done := scheduledTrip("Cairo", "Alexandria")
	done.Status = models.TripStatusCompleted
	done.PopularityScore = 20
	trips.add(done)

	svc := newTestService(t, trips, &fakeBookingRepo{})

	result, err := svc.GetPopularTrips(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, high.ID, result[0].ID)
	require.Equal(t, low.ID, result[1].ID)
}
