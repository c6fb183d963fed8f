package storage

import (
	"context"
	"errors"
	"time"

	"github.com/coldtruck/coldtruck-backend/internal/models"
)

var (
	// ErrNotFound is returned (wrapped) when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique field is already taken
	ErrDuplicate = errors.New("duplicate record")
)

// Store defines the interface for storage operations
type Store interface {
	// Trip operations
	GetTrip(ctx context.Context, id uint) (*models.Trip, error)
	ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error)
	CreateTrip(ctx context.Context, trip *models.Trip) error
	CancelExpiredTrips(ctx context.Context, now time.Time) ([]uint, error)

	// User operations
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Truck operations
	GetTruck(ctx context.Context, id uint) (*models.Truck, error)
	CreateTruck(ctx context.Context, truck *models.Truck) error
	GetActiveTruckAssignment(ctx context.Context, driverID uint) (*models.TruckAssignment, error)
	CreateTruckAssignment(ctx context.Context, assignment *models.TruckAssignment) error

	// Box operations
	GetBox(ctx context.Context, id uint) (*models.Box, error)
	CreateBox(ctx context.Context, box *models.Box) error

	// Route, cargo type and alert operations
	GetRoute(ctx context.Context, id uint) (*models.Route, error)
	CreateRoute(ctx context.Context, route *models.Route) error
	GetCargoType(ctx context.Context, id uint) (*models.CargoType, error)
	CreateCargoType(ctx context.Context, cargoType *models.CargoType) error
	GetAlert(ctx context.Context, id uint) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error

	// Tracking operations
	SaveTracking(ctx context.Context, tracking *models.Tracking) error

	// WithinTx runs fn as one atomic unit of work. Any error returned by fn
	// rolls the unit back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Tx is the view of the store inside a unit of work. Reads lock the rows
// they return where the backend supports it; status writes become visible
// only when the unit commits. It is the only place resource statuses are written.
type Tx interface {
	GetTrip(ctx context.Context, id uint) (*models.Trip, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetTruck(ctx context.Context, id uint) (*models.Truck, error)
	GetBox(ctx context.Context, id uint) (*models.Box, error)

	SetTripStatus(ctx context.Context, id uint, status models.TripStatus) error
	SetUserStatus(ctx context.Context, id uint, status models.ResourceStatus) error
	SetTruckStatus(ctx context.Context, id uint, status models.ResourceStatus) error
	SetBoxStatus(ctx context.Context, id uint, status models.ResourceStatus) error
}

// normalizeTrip fills the defaults every backend applies on create
func normalizeTrip(trip *models.Trip, now time.Time) {
	if trip.Status == "" {
		trip.Status = models.TripStatusScheduled
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now
}

func normalizeStatus(status *models.ResourceStatus) {
	if *status == "" {
		*status = models.StatusAvailable
	}
}
