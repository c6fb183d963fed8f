package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/internal/utils"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// demoPassword is shared by every seeded account
const demoPassword = "coldtruck"

type seedOptions struct {
	Drivers int
	Trips   int
	Boxes   int
	Now     time.Time
}

func defaultSeedOptions() seedOptions {
	return seedOptions{Drivers: 5, Trips: 15, Boxes: 3, Now: time.Now()}
}

var seedOpts = defaultSeedOptions()

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo drivers, trucks, routes and trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		log := logger.NewLogger(cfg.LogLevel)
		defer func() { _ = log.Sync() }()

		store, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close(ctx)

		bar := progressbar.Default(int64(seedTotal(seedOpts)), "seeding")
		if err := seedDemo(ctx, store, seedOpts, bar); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return fmt.Errorf("store already holds demo data: %w", err)
			}
			return err
		}
		_ = bar.Finish()

		log.Info("Demo data loaded", "drivers", seedOpts.Drivers, "trips", seedOpts.Trips, "password", demoPassword)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.Drivers, "drivers", seedOpts.Drivers, "drivers to create, each with its own truck")
	seedCmd.Flags().IntVar(&seedOpts.Trips, "trips", seedOpts.Trips, "trips to schedule")
	seedCmd.Flags().IntVar(&seedOpts.Boxes, "boxes", seedOpts.Boxes, "refrigeration boxes to create")
	rootCmd.AddCommand(seedCmd)
}

// one admin, a driver and truck per driver, boxes, two routes, two cargo types, two alert types, trips
func seedTotal(opts seedOptions) int {
	return 1 + 2*opts.Drivers + opts.Boxes + 6 + opts.Trips
}

var truckBrands = []string{"Kenworth", "Freightliner", "International", "Volvo", "Isuzu"}

// seedDemo fills store with a small consistent fleet. Ids start at 1 for
// every entity; bar may be nil.
func seedDemo(ctx context.Context, store storage.Store, opts seedOptions, bar *progressbar.ProgressBar) error {
	if opts.Drivers <= 0 {
		return fmt.Errorf("at least one driver is required")
	}
	fake := faker.New()
	step := func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	hash, err := utils.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		ID:               1,
		Name:             fake.Person().FirstName(),
		LastName:         fake.Person().LastName(),
		Email:            "admin@coldtruck.mx",
		Password:         hash,
		Role:             models.RoleAdmin,
		RegistrationDate: opts.Now,
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		return err
	}
	step()

	for i := 1; i <= opts.Drivers; i++ {
		driver := &models.User{
			ID:               uint(100 + i),
			Name:             fake.Person().FirstName(),
			LastName:         fake.Person().LastName(),
			Email:            fmt.Sprintf("driver%d@coldtruck.mx", i),
			Password:         hash,
			PhoneNumber:      fake.Phone().Number(),
			Role:             models.RoleDriver,
			RegistrationDate: opts.Now.AddDate(0, -fake.IntBetween(1, 24), 0),
			License:          strings.ToUpper(fake.Bothify("??#######")),
		}
		if err := store.CreateUser(ctx, driver); err != nil {
			return err
		}
		step()

		truck := &models.Truck{
			ID:           uint(i),
			Plates:       fmt.Sprintf("%s-%03d", strings.ToUpper(fake.Lexify("???")), i),
			LoadCapacity: float64(fake.IntBetween(8, 30) * 1000),
			AdminID:      admin.ID,
			Brand:        fake.RandomStringElement(truckBrands),
			Model:        strings.ToUpper(fake.Bothify("?###")),
		}
		if err := store.CreateTruck(ctx, truck); err != nil {
			return err
		}
		if err := store.CreateTruckAssignment(ctx, &models.TruckAssignment{
			DriverID:  driver.ID,
			TruckID:   truck.ID,
			DateStart: driver.RegistrationDate,
		}); err != nil {
			return err
		}
		step()
	}

	for i := 1; i <= opts.Boxes; i++ {
		if err := store.CreateBox(ctx, &models.Box{ID: uint(i), Label: fmt.Sprintf("Reefer %d", i)}); err != nil {
			return err
		}
		step()
	}

	routes := []*models.Route{
		{ID: 1, Name: "CDMX - Querétaro", MaxTemp: 4, MinTemp: 0, MaxHum: 90, MinHum: 60,
			Origin: models.NewGeoPoint(19.4326, -99.1332), Destination: models.NewGeoPoint(20.5888, -100.3899)},
		{ID: 2, Name: "Guadalajara - León", MaxTemp: -15, MinTemp: -25, MaxHum: 80, MinHum: 40,
			Origin: models.NewGeoPoint(20.6597, -103.3496), Destination: models.NewGeoPoint(21.1250, -101.6860)},
	}
	for _, route := range routes {
		route.AdminID = admin.ID
		if err := store.CreateRoute(ctx, route); err != nil {
			return err
		}
		step()
	}

	cargoTypes := []*models.CargoType{
		{ID: 1, Name: "Dairy", Description: "Milk, cheese and yogurt kept between 0 and 4 °C"},
		{ID: 2, Name: "Frozen", Description: "Frozen food kept below -15 °C"},
	}
	for _, cargoType := range cargoTypes {
		if err := store.CreateCargoType(ctx, cargoType); err != nil {
			return err
		}
		step()
	}

	alerts := []*models.Alert{
		{ID: 1, Type: "temperature", Description: "Box temperature outside the route limits"},
		{ID: 2, Type: "humidity", Description: "Box humidity outside the route limits"},
	}
	for _, alert := range alerts {
		if err := store.CreateAlert(ctx, alert); err != nil {
			return err
		}
		step()
	}

	for i := 1; i <= opts.Trips; i++ {
		driverIndex := (i-1)%opts.Drivers + 1
		departure := opts.Now.Add(time.Duration(fake.IntBetween(-48, 168)) * time.Hour).Truncate(time.Hour)
		trip := &models.Trip{
			ID:                     uint(i),
			ScheduledDepartureDate: departure,
			ScheduledArrivalDate:   departure.Add(time.Duration(fake.IntBetween(4, 16)) * time.Hour),
			EstimatedDistance:      float64(fake.IntBetween(80, 900)),
			DriverID:               uint(100 + driverIndex),
			AdminID:                admin.ID,
			TruckID:                uint(driverIndex),
			RouteID:                uint(fake.IntBetween(1, len(routes))),
			CargoTypeID:            uint(fake.IntBetween(1, len(cargoTypes))),
		}
		if opts.Boxes > 0 && fake.Bool() {
			boxID := uint(fake.IntBetween(1, opts.Boxes))
			trip.BoxID = &boxID
		}
		if err := store.CreateTrip(ctx, trip); err != nil {
			return err
		}
		step()
	}
	return nil
}
