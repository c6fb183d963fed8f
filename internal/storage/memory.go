package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coldtruck/coldtruck-backend/internal/models"
)

// MemoryStore holds all data in memory for development and tests.
// One mutex guards every map: a unit of work holds it for its whole
// duration, which serializes transactions.
type MemoryStore struct {
	mu sync.RWMutex

	trips       map[uint]*models.Trip
	users       map[uint]*models.User
	trucks      map[uint]*models.Truck
	boxes       map[uint]*models.Box
	routes      map[uint]*models.Route
	cargoTypes  map[uint]*models.CargoType
	alerts      map[uint]*models.Alert
	assignments []*models.TruckAssignment
	tracking    map[string]*models.Tracking

	assignmentCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips:      make(map[uint]*models.Trip),
		users:      make(map[uint]*models.User),
		trucks:     make(map[uint]*models.Truck),
		boxes:      make(map[uint]*models.Box),
		routes:     make(map[uint]*models.Route),
		cargoTypes: make(map[uint]*models.CargoType),
		alerts:     make(map[uint]*models.Alert),
		tracking:   make(map[string]*models.Tracking),
	}
}

func copyTrip(t *models.Trip) *models.Trip {
	c := *t
	c.Alerts = append([]models.AlertReading(nil), t.Alerts...)
	if t.BoxID != nil {
		id := *t.BoxID
		c.BoxID = &id
	}
	return &c
}

// Trip operations
func (m *MemoryStore) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trip, exists := m.trips[id]
	if !exists {
		return nil, fmt.Errorf("trip %d: %w", id, ErrNotFound)
	}
	return copyTrip(trip), nil
}

func (m *MemoryStore) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*models.Trip
	for _, trip := range m.trips {
		if filter.DriverID != nil && trip.DriverID != *filter.DriverID {
			continue
		}
		if filter.TruckID != nil && trip.TruckID != *filter.TruckID {
			continue
		}
		if excluded(trip.Status, filter.ExcludeStatuses) {
			continue
		}
		results = append(results, copyTrip(trip))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].ScheduledDepartureDate, results[j].ScheduledDepartureDate
		if a.Equal(b) {
			return results[i].ID < results[j].ID
		}
		if filter.Ascending {
			return a.Before(b)
		}
		return a.After(b)
	})
	return results, nil
}

func excluded(status models.TripStatus, statuses []models.TripStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.trips[trip.ID]; exists {
		return fmt.Errorf("trip %d: %w", trip.ID, ErrDuplicate)
	}
	normalizeTrip(trip, time.Now())
	m.trips[trip.ID] = copyTrip(trip)
	return nil
}

func (m *MemoryStore) CancelExpiredTrips(ctx context.Context, now time.Time) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var canceled []uint
	for id, trip := range m.trips {
		if trip.IsExpired(now) {
			trip.Status = models.TripStatusCanceled
			trip.UpdatedAt = now
			canceled = append(canceled, id)
		}
	}
	sort.Slice(canceled, func(i, j int) bool { return canceled[i] < canceled[j] })
	return canceled, nil
}

// User operations
func (m *MemoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	c := *user
	return &c, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			c := *user
			return &c, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
}

func (m *MemoryStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		c := *user
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ID]; exists {
		return fmt.Errorf("user %d: %w", user.ID, ErrDuplicate)
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return fmt.Errorf("email %q: %w", user.Email, ErrDuplicate)
		}
	}
	normalizeStatus(&user.Status)
	c := *user
	m.users[user.ID] = &c
	return nil
}

// Truck operations
func (m *MemoryStore) GetTruck(ctx context.Context, id uint) (*models.Truck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	truck, exists := m.trucks[id]
	if !exists {
		return nil, fmt.Errorf("truck %d: %w", id, ErrNotFound)
	}
	c := *truck
	return &c, nil
}

func (m *MemoryStore) CreateTruck(ctx context.Context, truck *models.Truck) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.trucks[truck.ID]; exists {
		return fmt.Errorf("truck %d: %w", truck.ID, ErrDuplicate)
	}
	normalizeStatus(&truck.Status)
	c := *truck
	m.trucks[truck.ID] = &c
	return nil
}

func (m *MemoryStore) GetActiveTruckAssignment(ctx context.Context, driverID uint) (*models.TruckAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.TruckAssignment
	for _, a := range m.assignments {
		if a.DriverID != driverID || !a.IsActive() {
			continue
		}
		if latest == nil || a.DateStart.After(latest.DateStart) {
			latest = a
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("assignment for driver %d: %w", driverID, ErrNotFound)
	}
	c := *latest
	return &c, nil
}

func (m *MemoryStore) CreateTruckAssignment(ctx context.Context, assignment *models.TruckAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assignmentCounter++
	assignment.ID = m.assignmentCounter
	c := *assignment
	m.assignments = append(m.assignments, &c)
	return nil
}

// Box operations
func (m *MemoryStore) GetBox(ctx context.Context, id uint) (*models.Box, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	box, exists := m.boxes[id]
	if !exists {
		return nil, fmt.Errorf("box %d: %w", id, ErrNotFound)
	}
	c := *box
	return &c, nil
}

func (m *MemoryStore) CreateBox(ctx context.Context, box *models.Box) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.boxes[box.ID]; exists {
		return fmt.Errorf("box %d: %w", box.ID, ErrDuplicate)
	}
	normalizeStatus(&box.Status)
	c := *box
	m.boxes[box.ID] = &c
	return nil
}

// Route and cargo type operations
func (m *MemoryStore) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	route, exists := m.routes[id]
	if !exists {
		return nil, fmt.Errorf("route %d: %w", id, ErrNotFound)
	}
	c := *route
	return &c, nil
}

func (m *MemoryStore) CreateRoute(ctx context.Context, route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.routes[route.ID]; exists {
		return fmt.Errorf("route %d: %w", route.ID, ErrDuplicate)
	}
	c := *route
	m.routes[route.ID] = &c
	return nil
}

func (m *MemoryStore) GetCargoType(ctx context.Context, id uint) (*models.CargoType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cargoType, exists := m.cargoTypes[id]
	if !exists {
		return nil, fmt.Errorf("cargo type %d: %w", id, ErrNotFound)
	}
	c := *cargoType
	return &c, nil
}

func (m *MemoryStore) CreateCargoType(ctx context.Context, cargoType *models.CargoType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.cargoTypes[cargoType.ID]; exists {
		return fmt.Errorf("cargo type %d: %w", cargoType.ID, ErrDuplicate)
	}
	c := *cargoType
	m.cargoTypes[cargoType.ID] = &c
	return nil
}

func (m *MemoryStore) GetAlert(ctx context.Context, id uint) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, exists := m.alerts[id]
	if !exists {
		return nil, fmt.Errorf("alert %d: %w", id, ErrNotFound)
	}
	a := *alert
	return &a, nil
}

func (m *MemoryStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %d: %w", alert.ID, ErrDuplicate)
	}
	a := *alert
	m.alerts[alert.ID] = &a
	return nil
}

// Tracking operations
func (m *MemoryStore) SaveTracking(ctx context.Context, tracking *models.Tracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *tracking
	m.tracking[tracking.ID] = &c
	return nil
}

// TrackingForTrip returns the stored points of a trip, oldest first
func (m *MemoryStore) TrackingForTrip(tripID uint) []*models.Tracking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var points []*models.Tracking
	for _, t := range m.tracking {
		if t.TripID == tripID {
			c := *t
			points = append(points, &c)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].DateTime.Before(points[j].DateTime) })
	return points
}

// WithinTx stages status writes and applies them only if fn succeeds
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		store:       m,
		tripStatus:  make(map[uint]models.TripStatus),
		userStatus:  make(map[uint]models.ResourceStatus),
		truckStatus: make(map[uint]models.ResourceStatus),
		boxStatus:   make(map[uint]models.ResourceStatus),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit(time.Now())
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// memoryTx reads through the staged writes; the store mutex is already held
type memoryTx struct {
	store *MemoryStore

	tripStatus  map[uint]models.TripStatus
	userStatus  map[uint]models.ResourceStatus
	truckStatus map[uint]models.ResourceStatus
	boxStatus   map[uint]models.ResourceStatus
}

func (t *memoryTx) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	trip, exists := t.store.trips[id]
	if !exists {
		return nil, fmt.Errorf("trip %d: %w", id, ErrNotFound)
	}
	c := copyTrip(trip)
	if status, staged := t.tripStatus[id]; staged {
		c.Status = status
	}
	return c, nil
}

func (t *memoryTx) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, exists := t.store.users[id]
	if !exists {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	c := *user
	if status, staged := t.userStatus[id]; staged {
		c.Status = status
	}
	return &c, nil
}

func (t *memoryTx) GetTruck(ctx context.Context, id uint) (*models.Truck, error) {
	truck, exists := t.store.trucks[id]
	if !exists {
		return nil, fmt.Errorf("truck %d: %w", id, ErrNotFound)
	}
	c := *truck
	if status, staged := t.truckStatus[id]; staged {
		c.Status = status
	}
	return &c, nil
}

func (t *memoryTx) GetBox(ctx context.Context, id uint) (*models.Box, error) {
	box, exists := t.store.boxes[id]
	if !exists {
		return nil, fmt.Errorf("box %d: %w", id, ErrNotFound)
	}
	c := *box
	if status, staged := t.boxStatus[id]; staged {
		c.Status = status
	}
	return &c, nil
}

func (t *memoryTx) SetTripStatus(ctx context.Context, id uint, status models.TripStatus) error {
	if _, exists := t.store.trips[id]; !exists {
		return fmt.Errorf("trip %d: %w", id, ErrNotFound)
	}
	t.tripStatus[id] = status
	return nil
}

func (t *memoryTx) SetUserStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	if _, exists := t.store.users[id]; !exists {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	t.userStatus[id] = status
	return nil
}

func (t *memoryTx) SetTruckStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	if _, exists := t.store.trucks[id]; !exists {
		return fmt.Errorf("truck %d: %w", id, ErrNotFound)
	}
	t.truckStatus[id] = status
	return nil
}

func (t *memoryTx) SetBoxStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	if _, exists := t.store.boxes[id]; !exists {
		return fmt.Errorf("box %d: %w", id, ErrNotFound)
	}
	t.boxStatus[id] = status
	return nil
}

func (t *memoryTx) commit(now time.Time) {
	for id, status := range t.tripStatus {
		t.store.trips[id].Status = status
		t.store.trips[id].UpdatedAt = now
	}
	for id, status := range t.userStatus {
		t.store.users[id].Status = status
	}
	for id, status := range t.truckStatus {
		t.store.trucks[id].Status = status
	}
	for id, status := range t.boxStatus {
		t.store.boxes[id].Status = status
	}
}
