package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
	"github.com/coldtruck/coldtruck-backend/pkg/metrics"
)

// ExpirySweeper cancels Scheduled trips whose arrival date has passed.
// It never touches driver, truck or box statuses.
type ExpirySweeper struct {
	store    storage.Store
	events   services.EventPublisher
	notifier services.DriverNotifier
	metrics  *metrics.Metrics
	log      logger.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewExpirySweeper creates a sweeper running every interval
func NewExpirySweeper(store storage.Store, events services.EventPublisher, notifier services.DriverNotifier, m *metrics.Metrics, log logger.Logger, interval time.Duration) *ExpirySweeper {
	if events == nil {
		events = services.NopPublisher{}
	}
	if notifier == nil {
		notifier = services.NopNotifier{}
	}
	return &ExpirySweeper{
		store:    store,
		events:   events,
		notifier: notifier,
		metrics:  m,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs one sweep immediately and then one per interval until Stop
// is called or ctx ends. Starting a running sweeper is a no-op.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.log.Warn("Expiry sweeper already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})

	s.log.Info("Starting expiry sweeper", "interval", s.interval.String())
	go s.loop(ctx, s.stopped)
}

// Stop halts the loop and waits for an in-flight sweep to finish
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel, s.stopped = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	s.log.Info("Expiry sweeper stopped")
}

func (s *ExpirySweeper) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Expiry sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce cancels every expired trip and returns their ids
func (s *ExpirySweeper) RunOnce(ctx context.Context) ([]uint, error) {
	now := s.now()
	ids, err := s.store.CancelExpiredTrips(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	s.log.Info("Canceled expired trips", "count", len(ids), "tripIds", ids)
	if s.metrics != nil {
		s.metrics.TripsExpired.Add(float64(len(ids)))
	}

	for _, id := range ids {
		s.announce(ctx, id, now)
	}
	return ids, nil
}

// announce publishes the cancellation and tells the driver, best effort
func (s *ExpirySweeper) announce(ctx context.Context, tripID uint, now time.Time) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		s.log.Warn("Could not load canceled trip", "tripId", tripID, "error", err)
		return
	}

	event := services.NewTripEvent(services.EventTripCanceled, trip, now)
	if err := s.events.Publish(ctx, event); err != nil {
		s.failed("event", tripID, err)
	}

	driver, err := s.store.GetUser(ctx, trip.DriverID)
	if err != nil || !driver.IsDriver() || driver.PhoneNumber == "" {
		return
	}
	if err := s.notifier.NotifyDriver(ctx, driver, event); err != nil {
		s.failed("notification", tripID, err)
	}
}

func (s *ExpirySweeper) failed(kind string, tripID uint, err error) {
	s.log.Warn("Post-sweep side effect failed", "kind", kind, "tripId", tripID, "error", err)
	if s.metrics != nil {
		s.metrics.SideEffectErrors.WithLabelValues(kind).Inc()
	}
}
