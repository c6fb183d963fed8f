package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coldtruck/coldtruck-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM (PostgreSQL in production)
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed storage
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// notFound converts gorm's missing-record error into ErrNotFound
func notFound(err error, entity string, key interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
	}
	return err
}

func duplicate(err error, entity string, key interface{}) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s %v: %w", entity, key, ErrDuplicate)
	}
	return err
}

// Trip operations
func (s *DatabaseStore) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	err := s.db.WithContext(ctx).Preload("Alerts", func(db *gorm.DB) *gorm.DB {
		return db.Order("date_time ASC")
	}).First(&trip, id).Error
	if err != nil {
		return nil, notFound(err, "trip", id)
	}
	return &trip, nil
}

func (s *DatabaseStore) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	query := s.db.WithContext(ctx).Preload("Alerts", func(db *gorm.DB) *gorm.DB {
		return db.Order("date_time ASC")
	})
	if filter.DriverID != nil {
		query = query.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.TruckID != nil {
		query = query.Where("truck_id = ?", *filter.TruckID)
	}
	if len(filter.ExcludeStatuses) > 0 {
		query = query.Where("status NOT IN ?", filter.ExcludeStatuses)
	}

	order := "scheduled_departure_date DESC"
	if filter.Ascending {
		order = "scheduled_departure_date ASC"
	}

	var trips []*models.Trip
	if err := query.Order(order).Order("id ASC").Find(&trips).Error; err != nil {
		return nil, err
	}
	return trips, nil
}

func (s *DatabaseStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	normalizeTrip(trip, time.Now())
	if err := s.db.WithContext(ctx).Create(trip).Error; err != nil {
		return duplicate(err, "trip", trip.ID)
	}
	return nil
}

func (s *DatabaseStore) CancelExpiredTrips(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Trip{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND scheduled_arrival_date < ?", models.TripStatusScheduled, now).
			Order("id ASC").
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		return tx.Model(&models.Trip{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     models.TripStatusCanceled,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// User operations
func (s *DatabaseStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return &user, nil
}

func (s *DatabaseStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *DatabaseStore) CreateUser(ctx context.Context, user *models.User) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = LOWER(?)", user.Email).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("email %q: %w", user.Email, ErrDuplicate)
	}

	normalizeStatus(&user.Status)
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return duplicate(err, "user", user.ID)
	}
	return nil
}

// Truck operations
func (s *DatabaseStore) GetTruck(ctx context.Context, id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := s.db.WithContext(ctx).First(&truck, id).Error; err != nil {
		return nil, notFound(err, "truck", id)
	}
	return &truck, nil
}

func (s *DatabaseStore) CreateTruck(ctx context.Context, truck *models.Truck) error {
	normalizeStatus(&truck.Status)
	if err := s.db.WithContext(ctx).Create(truck).Error; err != nil {
		return duplicate(err, "truck", truck.ID)
	}
	return nil
}

func (s *DatabaseStore) GetActiveTruckAssignment(ctx context.Context, driverID uint) (*models.TruckAssignment, error) {
	var assignment models.TruckAssignment
	err := s.db.WithContext(ctx).
		Where("driver_id = ? AND date_end IS NULL", driverID).
		Order("date_start DESC").
		First(&assignment).Error
	if err != nil {
		return nil, notFound(err, "assignment for driver", driverID)
	}
	return &assignment, nil
}

func (s *DatabaseStore) CreateTruckAssignment(ctx context.Context, assignment *models.TruckAssignment) error {
	return s.db.WithContext(ctx).Create(assignment).Error
}

// Box operations
func (s *DatabaseStore) GetBox(ctx context.Context, id uint) (*models.Box, error) {
	var box models.Box
	if err := s.db.WithContext(ctx).First(&box, id).Error; err != nil {
		return nil, notFound(err, "box", id)
	}
	return &box, nil
}

func (s *DatabaseStore) CreateBox(ctx context.Context, box *models.Box) error {
	normalizeStatus(&box.Status)
	if err := s.db.WithContext(ctx).Create(box).Error; err != nil {
		return duplicate(err, "box", box.ID)
	}
	return nil
}

// Route and cargo type operations
func (s *DatabaseStore) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	if err := s.db.WithContext(ctx).First(&route, id).Error; err != nil {
		return nil, notFound(err, "route", id)
	}
	return &route, nil
}

func (s *DatabaseStore) CreateRoute(ctx context.Context, route *models.Route) error {
	if err := s.db.WithContext(ctx).Create(route).Error; err != nil {
		return duplicate(err, "route", route.ID)
	}
	return nil
}

func (s *DatabaseStore) GetCargoType(ctx context.Context, id uint) (*models.CargoType, error) {
	var cargoType models.CargoType
	if err := s.db.WithContext(ctx).First(&cargoType, id).Error; err != nil {
		return nil, notFound(err, "cargo type", id)
	}
	return &cargoType, nil
}

func (s *DatabaseStore) CreateCargoType(ctx context.Context, cargoType *models.CargoType) error {
	if err := s.db.WithContext(ctx).Create(cargoType).Error; err != nil {
		return duplicate(err, "cargo type", cargoType.ID)
	}
	return nil
}

func (s *DatabaseStore) GetAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, notFound(err, "alert", id)
	}
	return &alert, nil
}

func (s *DatabaseStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return duplicate(err, "alert", alert.ID)
	}
	return nil
}

// Tracking operations
func (s *DatabaseStore) SaveTracking(ctx context.Context, tracking *models.Tracking) error {
	return s.db.WithContext(ctx).Create(tracking).Error
}

// WithinTx runs fn inside a database transaction; gorm rolls back when fn returns an error
func (s *DatabaseStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *DatabaseStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormTx reads rows with SELECT ... FOR UPDATE so concurrent transitions
// touching the same driver, truck or box queue behind each other
type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) locked(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := t.locked(ctx).First(&trip, id).Error; err != nil {
		return nil, notFound(err, "trip", id)
	}
	return &trip, nil
}

func (t *gormTx) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := t.locked(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (t *gormTx) GetTruck(ctx context.Context, id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := t.locked(ctx).First(&truck, id).Error; err != nil {
		return nil, notFound(err, "truck", id)
	}
	return &truck, nil
}

func (t *gormTx) GetBox(ctx context.Context, id uint) (*models.Box, error) {
	var box models.Box
	if err := t.locked(ctx).First(&box, id).Error; err != nil {
		return nil, notFound(err, "box", id)
	}
	return &box, nil
}

func (t *gormTx) setStatus(ctx context.Context, model interface{}, entity string, id uint, values map[string]interface{}) error {
	result := t.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

func (t *gormTx) SetTripStatus(ctx context.Context, id uint, status models.TripStatus) error {
	return t.setStatus(ctx, &models.Trip{}, "trip", id, map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
}

func (t *gormTx) SetUserStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	return t.setStatus(ctx, &models.User{}, "user", id, map[string]interface{}{"status": status})
}

func (t *gormTx) SetTruckStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	return t.setStatus(ctx, &models.Truck{}, "truck", id, map[string]interface{}{"status": status})
}

func (t *gormTx) SetBoxStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	return t.setStatus(ctx, &models.Box{}, "box", id, map[string]interface{}{"status": status})
}
