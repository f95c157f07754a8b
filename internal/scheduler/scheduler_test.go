package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"tripscore/internal/models"
	"tripscore/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakePopularityService struct {
	mu     sync.Mutex
	calls  int
	result *models.ReconcileResult
	err    error
}

func (f *fakePopularityService) ReconcileAll(ctx context.Context) (*models.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakePopularityService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePopularityService) RecomputeTripScore(ctx context.Context, tripID primitive.ObjectID) (*models.TripScoreResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePopularityService) ReconcileRoute(ctx context.Context, fromName, toName string) (*models.RouteReconcileResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePopularityService) OnBookingStatusChange(bookingID string, newStatus models.BookingStatus, tripID primitive.ObjectID) {
}

func (f *fakePopularityService) OnTripCompleted(tripID primitive.ObjectID) {}

func (f *fakePopularityService) Drain() {}

func (f *fakePopularityService) GetPopularTrips(ctx context.Context, routeKey string, limit int64) ([]*models.Trip, error) {
	return nil, errors.New("not implemented")
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	require.NoError(t, err)
	log.SetOutput(io.Discard)
	return log
}

func TestRunOnce(t *testing.T) {
	t.Run("runs a reconciliation pass", func(t *testing.T) {
		svc := &fakePopularityService{result: &models.ReconcileResult{TotalTrips: 3, SuccessCount: 3}}
		s := New(svc, newTestLogger(t), time.Hour, 0.1)

		s.RunOnce(context.Background())

		require.Equal(t, 1, svc.callCount())
	})

	t.Run("swallows reconciliation failures", func(t *testing.T) {
		svc := &fakePopularityService{err: errors.New("store down")}
		s := New(svc, newTestLogger(t), time.Hour, 0.1)

		s.RunOnce(context.Background())

		require.Equal(t, 1, svc.callCount())
	})
}

func TestRun(t *testing.T) {
	t.Run("ticks until cancelled", func(t *testing.T) {
		svc := &fakePopularityService{result: &models.ReconcileResult{}}
		s := New(svc, newTestLogger(t), 10*time.Millisecond, 0.1)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Run(ctx)
			close(done)
		}()

		require.Eventually(t, func() bool {
			return svc.callCount() >= 2
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop after cancellation")
		}
	})
}
