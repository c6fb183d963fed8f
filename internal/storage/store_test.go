package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coldtruck/coldtruck-backend/database"
	"github.com/coldtruck/coldtruck-backend/internal/models"
)

// openSQLiteStore opens an in-memory SQLite database with the production schema
func openSQLiteStore(t *testing.T) *DatabaseStore {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDatabaseStore(db)
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, openSQLiteStore(t))
	})
	if uri := os.Getenv("MONGODB_TEST_URI"); uri != "" {
		t.Run("mongo", func(t *testing.T) {
			fn(t, openMongoStore(t, uri))
		})
	}
}

type fleet struct {
	driver *models.User
	truck  *models.Truck
	box    *models.Box
	trip   *models.Trip
}

func seedFleet(t *testing.T, store Store) fleet {
	t.Helper()
	ctx := context.Background()

	driver := &models.User{ID: 5, Name: "Ana", Email: "ana@coldtruck.mx", Role: models.RoleDriver}
	truck := &models.Truck{ID: 3, Plates: "ABC-123"}
	box := &models.Box{ID: 7, Label: "Reefer 7"}
	boxID := box.ID
	trip := &models.Trip{
		ID:                     12,
		DriverID:               driver.ID,
		TruckID:                truck.ID,
		BoxID:                  &boxID,
		ScheduledDepartureDate: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		ScheduledArrivalDate:   time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
	}

	if err := store.CreateUser(ctx, driver); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.CreateTruck(ctx, truck); err != nil {
		t.Fatalf("create truck: %v", err)
	}
	if err := store.CreateBox(ctx, box); err != nil {
		t.Fatalf("create box: %v", err)
	}
	if err := store.CreateTrip(ctx, trip); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return fleet{driver: driver, truck: truck, box: box, trip: trip}
}

func TestStoreCreateDefaults(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		f := seedFleet(t, store)
		ctx := context.Background()

		trip, err := store.GetTrip(ctx, f.trip.ID)
		if err != nil {
			t.Fatalf("get trip: %v", err)
		}
		if trip.Status != models.TripStatusScheduled {
			t.Errorf("trip status = %q, want Scheduled", trip.Status)
		}
		if trip.BoxID == nil || *trip.BoxID != f.box.ID {
			t.Errorf("trip box = %v, want %d", trip.BoxID, f.box.ID)
		}

		driver, err := store.GetUser(ctx, f.driver.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		if driver.Status != models.StatusAvailable {
			t.Errorf("driver status = %q, want Available", driver.Status)
		}

		truck, err := store.GetTruck(ctx, f.truck.ID)
		if err != nil {
			t.Fatalf("get truck: %v", err)
		}
		if truck.Status != models.StatusAvailable {
			t.Errorf("truck status = %q, want Available", truck.Status)
		}
	})
}

func TestStoreNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		if _, err := store.GetTrip(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetTrip err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUser err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetTruck(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetTruck err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetBox(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetBox err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetRoute(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetRoute err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetCargoType(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetCargoType err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetAlert(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAlert err = %v, want ErrNotFound", err)
		}
		if _, err := store.GetActiveTruckAssignment(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetActiveTruckAssignment err = %v, want ErrNotFound", err)
		}
	})
}

func TestStoreUsersByEmail(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		seedFleet(t, store)
		ctx := context.Background()

		user, err := store.GetUserByEmail(ctx, "ANA@coldtruck.mx")
		if err != nil {
			t.Fatalf("get by email: %v", err)
		}
		if user.ID != 5 {
			t.Errorf("user id = %d, want 5", user.ID)
		}

		dup := &models.User{ID: 6, Email: "Ana@ColdTruck.mx"}
		if err := store.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
			t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
		}

		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		if len(users) != 1 {
			t.Errorf("users = %d, want 1", len(users))
		}
	})
}

func TestStoreListTrips(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		trips := []*models.Trip{
			{ID: 1, DriverID: 5, TruckID: 3, ScheduledDepartureDate: base.Add(48 * time.Hour)},
			{ID: 2, DriverID: 5, TruckID: 4, ScheduledDepartureDate: base, Status: models.TripStatusFinished},
			{ID: 3, DriverID: 5, TruckID: 3, ScheduledDepartureDate: base.Add(24 * time.Hour)},
			{ID: 4, DriverID: 6, TruckID: 3, ScheduledDepartureDate: base.Add(72 * time.Hour), Status: models.TripStatusCanceled},
		}
		for _, trip := range trips {
			trip.ScheduledArrivalDate = trip.ScheduledDepartureDate.Add(8 * time.Hour)
			if err := store.CreateTrip(ctx, trip); err != nil {
				t.Fatalf("create trip %d: %v", trip.ID, err)
			}
		}

		driverID := uint(5)
		got, err := store.ListTrips(ctx, models.TripFilter{
			DriverID:        &driverID,
			ExcludeStatuses: []models.TripStatus{models.TripStatusFinished},
			Ascending:       true,
		})
		if err != nil {
			t.Fatalf("list by driver: %v", err)
		}
		if ids := tripIDs(got); !equalIDs(ids, []uint{3, 1}) {
			t.Errorf("driver trips = %v, want [3 1]", ids)
		}

		truckID := uint(3)
		got, err = store.ListTrips(ctx, models.TripFilter{TruckID: &truckID})
		if err != nil {
			t.Fatalf("list by truck: %v", err)
		}
		if ids := tripIDs(got); !equalIDs(ids, []uint{4, 1, 3}) {
			t.Errorf("truck trips = %v, want [4 1 3]", ids)
		}

		got, err = store.ListTrips(ctx, models.TripFilter{
			ExcludeStatuses: []models.TripStatus{models.TripStatusCanceled},
		})
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if ids := tripIDs(got); !equalIDs(ids, []uint{1, 3, 2}) {
			t.Errorf("trips = %v, want [1 3 2]", ids)
		}
	})
}

func TestStoreCancelExpiredTrips(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		f := seedFleet(t, store)
		ctx := context.Background()

		running := &models.Trip{
			ID:                   13,
			DriverID:             f.driver.ID,
			TruckID:              f.truck.ID,
			Status:               models.TripStatusOnTrip,
			ScheduledArrivalDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		}
		future := &models.Trip{
			ID:                   14,
			DriverID:             f.driver.ID,
			TruckID:              f.truck.ID,
			ScheduledArrivalDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		for _, trip := range []*models.Trip{running, future} {
			if err := store.CreateTrip(ctx, trip); err != nil {
				t.Fatalf("create trip %d: %v", trip.ID, err)
			}
		}

		now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		ids, err := store.CancelExpiredTrips(ctx, now)
		if err != nil {
			t.Fatalf("cancel expired: %v", err)
		}
		if !equalIDs(ids, []uint{12}) {
			t.Fatalf("canceled = %v, want [12]", ids)
		}

		assertTripStatus(t, store, 12, models.TripStatusCanceled)
		assertTripStatus(t, store, 13, models.TripStatusOnTrip)
		assertTripStatus(t, store, 14, models.TripStatusScheduled)

		truck, err := store.GetTruck(ctx, f.truck.ID)
		if err != nil {
			t.Fatalf("get truck: %v", err)
		}
		if truck.Status != models.StatusAvailable {
			t.Errorf("truck status = %q, sweep must not touch resources", truck.Status)
		}

		ids, err = store.CancelExpiredTrips(ctx, now)
		if err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("second sweep canceled %v, want none", ids)
		}
	})
}

func TestStoreWithinTxCommits(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		f := seedFleet(t, store)
		ctx := context.Background()

		err := store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.SetTripStatus(ctx, f.trip.ID, models.TripStatusOnTrip); err != nil {
				return err
			}
			if err := tx.SetUserStatus(ctx, f.driver.ID, models.StatusOnTrip); err != nil {
				return err
			}
			if err := tx.SetTruckStatus(ctx, f.truck.ID, models.StatusOnTrip); err != nil {
				return err
			}
			if err := tx.SetBoxStatus(ctx, f.box.ID, models.StatusOnTrip); err != nil {
				return err
			}

			// writes are visible inside the unit of work
			truck, err := tx.GetTruck(ctx, f.truck.ID)
			if err != nil {
				return err
			}
			if truck.Status != models.StatusOnTrip {
				t.Errorf("truck status inside tx = %q, want OnTrip", truck.Status)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("within tx: %v", err)
		}

		assertTripStatus(t, store, f.trip.ID, models.TripStatusOnTrip)
		assertResources(t, store, f, models.StatusOnTrip)
	})
}

func TestStoreWithinTxRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		f := seedFleet(t, store)
		ctx := context.Background()
		boom := errors.New("boom")

		err := store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.SetTripStatus(ctx, f.trip.ID, models.TripStatusOnTrip); err != nil {
				return err
			}
			if err := tx.SetUserStatus(ctx, f.driver.ID, models.StatusOnTrip); err != nil {
				return err
			}
			if err := tx.SetTruckStatus(ctx, f.truck.ID, models.StatusOnTrip); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("within tx err = %v, want boom", err)
		}

		assertTripStatus(t, store, f.trip.ID, models.TripStatusScheduled)
		assertResources(t, store, f, models.StatusAvailable)
	})
}

func TestStoreTxMissingRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		err := store.WithinTx(ctx, func(tx Tx) error {
			if _, err := tx.GetTrip(ctx, 999); !errors.Is(err, ErrNotFound) {
				t.Errorf("tx GetTrip err = %v, want ErrNotFound", err)
			}
			if _, err := tx.GetBox(ctx, 999); !errors.Is(err, ErrNotFound) {
				t.Errorf("tx GetBox err = %v, want ErrNotFound", err)
			}
			if err := tx.SetTruckStatus(ctx, 999, models.StatusOnTrip); !errors.Is(err, ErrNotFound) {
				t.Errorf("tx SetTruckStatus err = %v, want ErrNotFound", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("within tx: %v", err)
		}
	})
}

func TestStoreActiveTruckAssignment(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		ended := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

		assignments := []*models.TruckAssignment{
			{DriverID: 5, TruckID: 1, DateStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), DateEnd: &ended},
			{DriverID: 5, TruckID: 3, DateStart: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		}
		for _, a := range assignments {
			if err := store.CreateTruckAssignment(ctx, a); err != nil {
				t.Fatalf("create assignment: %v", err)
			}
		}

		active, err := store.GetActiveTruckAssignment(ctx, 5)
		if err != nil {
			t.Fatalf("active assignment: %v", err)
		}
		if active.TruckID != 3 {
			t.Errorf("active truck = %d, want 3", active.TruckID)
		}
	})
}

func TestStoreRoutesAndTracking(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		route := &models.Route{
			ID:          1,
			Name:        "CDMX - Querétaro",
			MaxTemp:     4,
			MinTemp:     -2,
			Origin:      models.NewGeoPoint(19.43, -99.13),
			Destination: models.NewGeoPoint(20.59, -100.39),
		}
		if err := store.CreateRoute(ctx, route); err != nil {
			t.Fatalf("create route: %v", err)
		}
		got, err := store.GetRoute(ctx, 1)
		if err != nil {
			t.Fatalf("get route: %v", err)
		}
		if len(got.Origin.Coordinates) != 2 || got.Origin.Coordinates[0] != -99.13 {
			t.Errorf("origin = %+v, want [lng lat]", got.Origin)
		}

		if err := store.CreateCargoType(ctx, &models.CargoType{ID: 2, Name: "Dairy"}); err != nil {
			t.Fatalf("create cargo type: %v", err)
		}
		cargo, err := store.GetCargoType(ctx, 2)
		if err != nil {
			t.Fatalf("get cargo type: %v", err)
		}
		if cargo.Name != "Dairy" {
			t.Errorf("cargo name = %q, want Dairy", cargo.Name)
		}

		alert := &models.Alert{ID: 1, Type: "humidity", Description: "Humidity out of range"}
		if err := store.CreateAlert(ctx, alert); err != nil {
			t.Fatalf("create alert: %v", err)
		}
		if err := store.CreateAlert(ctx, alert); !errors.Is(err, ErrDuplicate) {
			t.Errorf("second create alert err = %v, want ErrDuplicate", err)
		}
		gotAlert, err := store.GetAlert(ctx, 1)
		if err != nil {
			t.Fatalf("get alert: %v", err)
		}
		if gotAlert.Type != "humidity" {
			t.Errorf("alert type = %q, want humidity", gotAlert.Type)
		}

		point := &models.Tracking{
			ID:          "0b7e3f9c-4a43-4a8e-9d59-2f0f5ec3c6a1",
			Type:        "Point",
			Coordinates: []float64{-99.13, 19.43},
			DateTime:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			TripID:      12,
		}
		if err := store.SaveTracking(ctx, point); err != nil {
			t.Fatalf("save tracking: %v", err)
		}
	})
}

func assertTripStatus(t *testing.T, store Store, id uint, want models.TripStatus) {
	t.Helper()
	trip, err := store.GetTrip(context.Background(), id)
	if err != nil {
		t.Fatalf("get trip %d: %v", id, err)
	}
	if trip.Status != want {
		t.Errorf("trip %d status = %q, want %q", id, trip.Status, want)
	}
}

func assertResources(t *testing.T, store Store, f fleet, want models.ResourceStatus) {
	t.Helper()
	ctx := context.Background()

	driver, err := store.GetUser(ctx, f.driver.ID)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	truck, err := store.GetTruck(ctx, f.truck.ID)
	if err != nil {
		t.Fatalf("get truck: %v", err)
	}
	box, err := store.GetBox(ctx, f.box.ID)
	if err != nil {
		t.Fatalf("get box: %v", err)
	}
	if driver.Status != want || truck.Status != want || box.Status != want {
		t.Errorf("driver=%q truck=%q box=%q, want %q", driver.Status, truck.Status, box.Status, want)
	}
}

func tripIDs(trips []*models.Trip) []uint {
	ids := make([]uint, 0, len(trips))
	for _, trip := range trips {
		ids = append(ids, trip.ID)
	}
	return ids
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
