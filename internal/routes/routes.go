package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coldtruck/coldtruck-backend/internal/handlers"
	"github.com/coldtruck/coldtruck-backend/internal/middleware"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
	"github.com/coldtruck/coldtruck-backend/pkg/metrics"
)

// Dependencies is everything the HTTP layer needs
type Dependencies struct {
	Store     storage.Store
	Lifecycle handlers.TripTransitions
	Metrics   *metrics.Metrics
	Logger    logger.Logger
	Version   string
	// AccessLog enables the per-request log line
	AccessLog bool
}

// NewApp creates the fiber app with middleware and all routes registered
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "ColdTruck Backend " + deps.Version,
		ErrorHandler: handlers.ErrorHandler(deps.Logger),
	})

	app.Use(requestid.New())
	if deps.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(middleware.CountErrors(deps.Metrics))

	SetupRoutes(app, deps)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.Version, deps.Store)
	tripHandler := handlers.NewTripHandler(deps.Store, deps.Lifecycle, deps.Logger)
	truckHandler := handlers.NewTruckHandler(deps.Store, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.Store, deps.Logger)
	catalogHandler := handlers.NewCatalogHandler(deps.Store, deps.Logger)
	trackingHandler := handlers.NewTrackingHandler(deps.Store, deps.Logger)

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))

	// Trip lifecycle and lookups
	trips := app.Group("/trip")
	trips.Post("/start", tripHandler.StartTrip)
	trips.Post("/finish", tripHandler.FinishTrip)
	trips.Get("/", tripHandler.GetTrips)
	trips.Get("/driver/:idDriver", tripHandler.GetDriverTrips)
	trips.Get("/truck/:idTruck", tripHandler.GetTruckTrips)
	trips.Get("/:id", tripHandler.GetTrip)

	app.Get("/truck/:id", truckHandler.GetTruck)
	app.Get("/driver/my-truck/:userId", truckHandler.GetDriverTruck)

	users := app.Group("/user")
	users.Get("/", userHandler.GetUsers)
	users.Post("/", userHandler.CreateUser)
	app.Post("/login", userHandler.Login)

	app.Get("/rute/:id", catalogHandler.GetRoute)
	app.Get("/cargoType/:id", catalogHandler.GetCargoType)
	app.Get("/alert/:id", catalogHandler.GetAlert)

	app.Post("/tracking/guardar", trackingHandler.SaveTracking)
}
