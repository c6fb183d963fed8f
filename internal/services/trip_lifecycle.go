package services

import (
	"context"
	"errors"
	"time"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
	"github.com/coldtruck/coldtruck-backend/pkg/metrics"
)

const (
	opStart  = "start"
	opFinish = "finish"
)

// TripLifecycle moves a trip and the resources it holds between statuses.
// It is the only writer of driver, truck and box statuses; every
// transition runs inside one unit of work of the store.
type TripLifecycle struct {
	store     storage.Store
	events    EventPublisher
	notifier  DriverNotifier
	metrics   *metrics.Metrics
	log       logger.Logger
	txTimeout time.Duration
	now       func() time.Time
}

// NewTripLifecycle creates the coordinator. Nil publishers and notifiers
// are replaced with no-op implementations.
func NewTripLifecycle(store storage.Store, events EventPublisher, notifier DriverNotifier, m *metrics.Metrics, log logger.Logger, txTimeout time.Duration) *TripLifecycle {
	if events == nil {
		events = NopPublisher{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &TripLifecycle{
		store:     store,
		events:    events,
		notifier:  notifier,
		metrics:   m,
		log:       log,
		txTimeout: txTimeout,
		now:       time.Now,
	}
}

// loaded holds what a transition read inside its unit of work
type loaded struct {
	trip   *models.Trip
	driver *models.User
	truck  *models.Truck
	box    *models.Box
}

// StartTrip binds the trip's driver, truck and optional box and marks all
// of them OnTrip. Errors are always *LifecycleError.
func (s *TripLifecycle) StartTrip(ctx context.Context, tripID uint) error {
	var l loaded
	err := s.run(ctx, opStart, tripID, func(tx storage.Tx) error {
		var err error
		l, err = loadForStart(ctx, tx, tripID)
		if err != nil {
			return err
		}

		if l.driver.Status.IsBusy() || l.truck.Status.IsBusy() || (l.box != nil && l.box.Status.IsBusy()) {
			return conflictError(MsgAlreadyOnTrip)
		}
		if l.trip.Status != models.TripStatusScheduled {
			return conflictError(MsgTripNotStartable)
		}

		return applyStatuses(ctx, tx, l, models.TripStatusOnTrip, models.StatusOnTrip)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, EventTripStarted, l)
	return nil
}

// FinishTrip marks the trip Finished and releases whichever of its
// resources still exist. Missing resources are skipped.
func (s *TripLifecycle) FinishTrip(ctx context.Context, tripID uint) error {
	var l loaded
	err := s.run(ctx, opFinish, tripID, func(tx storage.Tx) error {
		var err error
		l, err = loadForFinish(ctx, tx, tripID)
		if err != nil {
			return err
		}

		if l.trip.Status != models.TripStatusOnTrip {
			return conflictError(MsgTripNotOnTrip)
		}

		return applyStatuses(ctx, tx, l, models.TripStatusFinished, models.StatusAvailable)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, EventTripFinished, l)
	return nil
}

// run executes fn as one unit of work bounded by the transaction timeout,
// normalizes its error and records metrics.
func (s *TripLifecycle) run(ctx context.Context, op string, tripID uint, fn func(tx storage.Tx) error) error {
	start := time.Now()
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	err := s.store.WithinTx(ctx, fn)
	if s.metrics != nil {
		s.metrics.TransitionDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}

	log := logger.FromContext(ctx, s.log)
	if err == nil {
		s.observe(op, "success")
		log.Info("Trip transition committed", "operation", op, "tripId", tripID)
		return nil
	}

	lerr := asLifecycleError(err)
	s.observe(op, lerr.Kind.String())
	if lerr.Kind == KindUnexpected {
		log.Error("Trip transition failed", "operation", op, "tripId", tripID, "error", err)
	} else {
		log.Debug("Trip transition rejected", "operation", op, "tripId", tripID, "reason", lerr.Msg)
	}
	return lerr
}

func (s *TripLifecycle) observe(op, result string) {
	if s.metrics != nil {
		s.metrics.TripTransitions.WithLabelValues(op, result).Inc()
	}
}

func loadForStart(ctx context.Context, tx storage.Tx, tripID uint) (loaded, error) {
	var l loaded
	trip, err := tx.GetTrip(ctx, tripID)
	if err != nil {
		return l, lookupError(err, MsgTripNotFound)
	}
	l.trip = trip

	if l.driver, err = tx.GetUser(ctx, trip.DriverID); err != nil {
		return l, lookupError(err, MsgRelatedNotFound)
	}
	if l.truck, err = tx.GetTruck(ctx, trip.TruckID); err != nil {
		return l, lookupError(err, MsgRelatedNotFound)
	}
	if trip.HasBox() {
		if l.box, err = tx.GetBox(ctx, *trip.BoxID); err != nil {
			return l, lookupError(err, MsgRelatedNotFound)
		}
	}
	return l, nil
}

func loadForFinish(ctx context.Context, tx storage.Tx, tripID uint) (loaded, error) {
	var l loaded
	trip, err := tx.GetTrip(ctx, tripID)
	if err != nil {
		return l, lookupError(err, MsgTripNotFound)
	}
	l.trip = trip

	if l.driver, err = tx.GetUser(ctx, trip.DriverID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return l, unexpectedError(err)
	}
	if l.truck, err = tx.GetTruck(ctx, trip.TruckID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return l, unexpectedError(err)
	}
	if trip.HasBox() {
		if l.box, err = tx.GetBox(ctx, *trip.BoxID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return l, unexpectedError(err)
		}
	}
	return l, nil
}

// applyStatuses writes the trip status and the resource status of every
// loaded resource. Nil resources are left alone.
func applyStatuses(ctx context.Context, tx storage.Tx, l loaded, tripStatus models.TripStatus, resource models.ResourceStatus) error {
	if err := tx.SetTripStatus(ctx, l.trip.ID, tripStatus); err != nil {
		return unexpectedError(err)
	}
	if l.driver != nil {
		if err := tx.SetUserStatus(ctx, l.driver.ID, resource); err != nil {
			return unexpectedError(err)
		}
	}
	if l.truck != nil {
		if err := tx.SetTruckStatus(ctx, l.truck.ID, resource); err != nil {
			return unexpectedError(err)
		}
	}
	if l.box != nil {
		if err := tx.SetBoxStatus(ctx, l.box.ID, resource); err != nil {
			return unexpectedError(err)
		}
	}
	return nil
}

func lookupError(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFoundError(msg, err)
	}
	return unexpectedError(err)
}

// afterCommit publishes the lifecycle event and tells the driver. Both are
// best effort: failures are logged and counted, never returned.
func (s *TripLifecycle) afterCommit(ctx context.Context, eventType string, l loaded) {
	event := NewTripEvent(eventType, l.trip, s.now())
	if err := s.events.Publish(ctx, event); err != nil {
		s.sideEffectFailed(ctx, "event", l.trip.ID, err)
	}

	if l.driver == nil || !l.driver.IsDriver() || l.driver.PhoneNumber == "" {
		return
	}
	if err := s.notifier.NotifyDriver(ctx, l.driver, event); err != nil {
		s.sideEffectFailed(ctx, "notification", l.trip.ID, err)
	}
}

func (s *TripLifecycle) sideEffectFailed(ctx context.Context, kind string, tripID uint, err error) {
	logger.FromContext(ctx, s.log).Warn("Post-commit side effect failed", "kind", kind, "tripId", tripID, "error", err)
	if s.metrics != nil {
		s.metrics.SideEffectErrors.WithLabelValues(kind).Inc()
	}
}
