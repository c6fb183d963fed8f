package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/coldtruck/coldtruck-backend/internal/models"
	"github.com/coldtruck/coldtruck-backend/internal/services"
	"github.com/coldtruck/coldtruck-backend/internal/storage"
	"github.com/coldtruck/coldtruck-backend/internal/utils"
	"github.com/coldtruck/coldtruck-backend/pkg/logger"
)

// stubTransitions returns a fixed error for every call
type stubTransitions struct {
	err error
}

func (s stubTransitions) StartTrip(context.Context, uint) error  { return s.err }
func (s stubTransitions) FinishTrip(context.Context, uint) error { return s.err }

type downStore struct {
	*storage.MemoryStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newApp(store storage.Store, lifecycle TripTransitions) *fiber.App {
	log := logger.NewNop()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(log)})

	trips := NewTripHandler(store, lifecycle, log)
	app.Post("/trip/start", trips.StartTrip)
	app.Post("/trip/finish", trips.FinishTrip)
	app.Get("/trip", trips.GetTrips)
	app.Get("/trip/driver/:idDriver", trips.GetDriverTrips)
	app.Get("/trip/truck/:idTruck", trips.GetTruckTrips)
	app.Get("/trip/:id", trips.GetTrip)

	trucks := NewTruckHandler(store, log)
	app.Get("/truck/:id", trucks.GetTruck)
	app.Get("/driver/my-truck/:userId", trucks.GetDriverTruck)

	users := NewUserHandler(store, log)
	app.Get("/user", users.GetUsers)
	app.Post("/user", users.CreateUser)
	app.Post("/login", users.Login)

	catalog := NewCatalogHandler(store, log)
	app.Get("/rute/:id", catalog.GetRoute)
	app.Get("/cargoType/:id", catalog.GetCargoType)
	app.Get("/alert/:id", catalog.GetAlert)

	app.Post("/tracking/guardar", NewTrackingHandler(store, log).SaveTracking)
	app.Get("/health", NewHealthHandler("test", store).Check)
	return app
}

func seedStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	departure := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	hash, err := utils.HashPassword("frio123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	must(store.CreateUser(ctx, &models.User{ID: 5, Name: "Ana", Email: "ana@coldtruck.mx", Password: hash, Role: models.RoleDriver}))
	must(store.CreateUser(ctx, &models.User{ID: 8, Name: "Rosa", Email: "rosa@coldtruck.mx", Role: models.RoleDriver}))
	must(store.CreateTruck(ctx, &models.Truck{ID: 3, Plates: "ABC-123", LoadCapacity: 12000, Brand: "Kenworth", Model: "T680"}))
	must(store.CreateTruckAssignment(ctx, &models.TruckAssignment{DriverID: 5, TruckID: 3, DateStart: departure.Add(-720 * time.Hour)}))
	must(store.CreateRoute(ctx, &models.Route{ID: 1, Name: "CDMX - Puebla", MaxTemp: 4, MinTemp: -2}))
	must(store.CreateCargoType(ctx, &models.CargoType{ID: 2, Name: "Dairy"}))
	must(store.CreateAlert(ctx, &models.Alert{ID: 1, Type: "temperature", Description: "Temperature out of range"}))

	trips := []*models.Trip{
		{ID: 12, DriverID: 5, TruckID: 3, ScheduledDepartureDate: departure},
		{ID: 20, DriverID: 8, TruckID: 3, ScheduledDepartureDate: departure.Add(24 * time.Hour)},
		{ID: 21, DriverID: 5, TruckID: 3, ScheduledDepartureDate: departure.Add(-24 * time.Hour), Status: models.TripStatusFinished},
		{ID: 22, DriverID: 5, TruckID: 3, ScheduledDepartureDate: departure.Add(48 * time.Hour), Status: models.TripStatusCanceled},
	}
	for _, trip := range trips {
		trip.ScheduledArrivalDate = trip.ScheduledDepartureDate.Add(8 * time.Hour)
		must(store.CreateTrip(ctx, trip))
	}
	return store
}

func newLifecycle(store storage.Store) *services.TripLifecycle {
	return services.NewTripLifecycle(store, nil, nil, nil, logger.NewNop(), 5*time.Second)
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

func decodeList(t *testing.T, app *fiber.App, path string) (int, []map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out []map[string]interface{}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode list: %v", err)
		}
	}
	return resp.StatusCode, out
}

func TestStartAndFinishTrip(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	status, body := doRequest(t, app, http.MethodPost, "/trip/start", `{"tripId": 12}`)
	if status != http.StatusOK || body["msg"] != "Trip started successfully" {
		t.Fatalf("start = %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodPost, "/trip/start", `{"tripId": 12}`)
	if status != http.StatusBadRequest || body["msg"] != services.MsgAlreadyOnTrip {
		t.Fatalf("second start = %d %v, want 400 conflict", status, body)
	}

	status, body = doRequest(t, app, http.MethodPost, "/trip/start", `{"tripId": 20}`)
	if status != http.StatusBadRequest {
		t.Fatalf("start trip sharing truck = %d %v, want 400", status, body)
	}

	status, body = doRequest(t, app, http.MethodPost, "/trip/finish", `{"tripId": "12"}`)
	if status != http.StatusOK || body["msg"] != "Trip finished successfully" {
		t.Fatalf("finish = %d %v", status, body)
	}

	trip, err := store.GetTrip(context.Background(), 12)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	if trip.Status != models.TripStatusFinished {
		t.Errorf("trip status = %q, want Finished", trip.Status)
	}
}

func TestStartTripErrors(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		msg    string
	}{
		{"missing id", "/trip/start", `{}`, http.StatusBadRequest, "Invalid trip id"},
		{"non numeric", "/trip/start", `{"tripId": "abc"}`, http.StatusBadRequest, "Invalid trip id"},
		{"negative", "/trip/start", `{"tripId": -4}`, http.StatusBadRequest, "Invalid trip id"},
		{"fraction", "/trip/finish", `{"tripId": 12.5}`, http.StatusBadRequest, "Invalid trip id"},
		{"malformed json", "/trip/finish", `{"tripId":`, http.StatusBadRequest, "Invalid trip id"},
		{"unknown trip", "/trip/start", `{"tripId": 999}`, http.StatusNotFound, services.MsgTripNotFound},
		{"finish unknown trip", "/trip/finish", `{"tripId": 999}`, http.StatusNotFound, services.MsgTripNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, http.MethodPost, tt.path, tt.body)
			if status != tt.status || body["msg"] != tt.msg {
				t.Errorf("got %d %v, want %d %q", status, body, tt.status, tt.msg)
			}
		})
	}
}

func TestLifecycleErrorMapping(t *testing.T) {
	store := seedStore(t)

	tests := []struct {
		err    error
		status int
	}{
		{&services.LifecycleError{Kind: services.KindInvalidInput, Msg: "bad"}, http.StatusBadRequest},
		{&services.LifecycleError{Kind: services.KindNotFound, Msg: "gone"}, http.StatusNotFound},
		{&services.LifecycleError{Kind: services.KindConflict, Msg: "busy"}, http.StatusBadRequest},
		{&services.LifecycleError{Kind: services.KindUnexpected, Msg: services.MsgServerError}, http.StatusInternalServerError},
		{errors.New("raw"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		app := newApp(store, stubTransitions{err: tt.err})
		status, _ := doRequest(t, app, http.MethodPost, "/trip/start", `{"tripId": 12}`)
		if status != tt.status {
			t.Errorf("%v -> %d, want %d", tt.err, status, tt.status)
		}
	}
}

func TestTripQueries(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	status, body := doRequest(t, app, http.MethodGet, "/trip/12", "")
	if status != http.StatusOK || body["_id"] != float64(12) || body["IDDriver"] != float64(5) {
		t.Fatalf("GET /trip/12 = %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/trip/999", "")
	if status != http.StatusNotFound || body["msg"] != services.MsgTripNotFound {
		t.Fatalf("GET /trip/999 = %d %v", status, body)
	}

	status, list := decodeList(t, app, "/trip?IDDriver=5")
	if status != http.StatusOK || len(list) != 2 || list[0]["_id"] != float64(12) || list[1]["_id"] != float64(21) {
		t.Fatalf("GET /trip?IDDriver=5 = %d %v, want trips 12 and 21", status, list)
	}

	status, list = decodeList(t, app, "/trip/driver/5")
	if status != http.StatusOK || len(list) != 2 || list[0]["_id"] != float64(12) || list[1]["_id"] != float64(22) {
		t.Fatalf("GET /trip/driver/5 = %d %v, want trips 12 and 22", status, list)
	}

	status, _ = decodeList(t, app, "/trip/driver/77")
	if status != http.StatusNotFound {
		t.Fatalf("GET /trip/driver/77 = %d, want 404", status)
	}

	status, list = decodeList(t, app, "/trip/truck/3")
	if status != http.StatusOK || len(list) != 4 || list[0]["_id"] != float64(22) {
		t.Fatalf("GET /trip/truck/3 = %d %v", status, list)
	}
}

func TestTruckQueries(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	status, body := doRequest(t, app, http.MethodGet, "/truck/3", "")
	if status != http.StatusOK || body["plates"] != "ABC-123" {
		t.Fatalf("GET /truck/3 = %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/truck/abc", "")
	if status != http.StatusBadRequest {
		t.Fatalf("GET /truck/abc = %d %v, want 400", status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/driver/my-truck/5", "")
	if status != http.StatusOK || body["truckNumber"] != float64(3) || body["brand"] != "Kenworth" {
		t.Fatalf("GET /driver/my-truck/5 = %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/driver/my-truck/8", "")
	if status != http.StatusNotFound || body["msg"] != "No truck assigned to this driver" {
		t.Fatalf("GET /driver/my-truck/8 = %d %v", status, body)
	}
}

func TestCatalogQueries(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	status, body := doRequest(t, app, http.MethodGet, "/rute/1", "")
	if status != http.StatusOK || body["maxTemp"] != float64(4) {
		t.Fatalf("GET /rute/1 = %d %v", status, body)
	}
	status, _ = doRequest(t, app, http.MethodGet, "/rute/9", "")
	if status != http.StatusNotFound {
		t.Fatalf("GET /rute/9 = %d, want 404", status)
	}

	status, body = doRequest(t, app, http.MethodGet, "/cargoType/2", "")
	if status != http.StatusOK || body["name"] != "Dairy" {
		t.Fatalf("GET /cargoType/2 = %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodGet, "/alert/1", "")
	if status != http.StatusOK || body["type"] != "temperature" || body["_id"] != float64(1) {
		t.Fatalf("GET /alert/1 = %d %v", status, body)
	}
	status, body = doRequest(t, app, http.MethodGet, "/alert/4", "")
	if status != http.StatusNotFound || body["msg"] != "Alert not found" {
		t.Fatalf("GET /alert/4 = %d %v", status, body)
	}
}

func TestCreateUserAndLogin(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	payload := `{"_id": 9, "name": "Iván", "lastName": "Soto", "email": "ivan@coldtruck.mx", "password": "cadena-fria", "role": "driver"}`
	status, body := doRequest(t, app, http.MethodPost, "/user", payload)
	if status != http.StatusCreated {
		t.Fatalf("POST /user = %d %v", status, body)
	}
	user, _ := body["user"].(map[string]interface{})
	if _, leaked := user["password"]; leaked {
		t.Error("password must not be serialized")
	}
	if user["status"] != string(models.StatusAvailable) {
		t.Errorf("status = %v, want Available", user["status"])
	}

	status, body = doRequest(t, app, http.MethodPost, "/user", strings.Replace(payload, `"_id": 9`, `"_id": 10`, 1))
	if status != http.StatusBadRequest || body["msg"] != "User already exists" {
		t.Fatalf("duplicate POST /user = %d %v", status, body)
	}

	status, body = doRequest(t, app, http.MethodPost, "/user", `{"_id": 11, "name": "X", "lastName": "Y", "email": "x@y.mx", "password": "123456", "status": "OnTrip"}`)
	if status != http.StatusBadRequest {
		t.Fatalf("POST /user with OnTrip status = %d %v, want 400", status, body)
	}

	status, body = doRequest(t, app, http.MethodPost, "/login", `{"email": "IVAN@coldtruck.mx", "password": "cadena-fria"}`)
	if status != http.StatusOK || body["message"] != "Login successful" {
		t.Fatalf("login = %d %v", status, body)
	}

	status, _ = doRequest(t, app, http.MethodPost, "/login", `{"email": "ivan@coldtruck.mx", "password": "wrong"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("login with wrong password = %d, want 401", status)
	}

	status, _ = doRequest(t, app, http.MethodPost, "/login", `{"email": "nadie@coldtruck.mx", "password": "x"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("login unknown user = %d, want 401", status)
	}

	listStatus, users := decodeList(t, app, "/user")
	if listStatus != http.StatusOK || len(users) != 3 {
		t.Fatalf("GET /user = %d, %d users", listStatus, len(users))
	}
}

func TestSaveTracking(t *testing.T) {
	store := seedStore(t)
	app := newApp(store, newLifecycle(store))

	status, body := doRequest(t, app, http.MethodPost, "/tracking/guardar", `{"lat": 19.43, "lng": -99.13, "IDTrip": 12}`)
	if status != http.StatusOK || body["success"] != true {
		t.Fatalf("POST /tracking/guardar = %d %v", status, body)
	}

	points := store.TrackingForTrip(12)
	if len(points) != 1 {
		t.Fatalf("stored %d points, want 1", len(points))
	}
	if points[0].Coordinates[0] != -99.13 || points[0].Coordinates[1] != 19.43 {
		t.Errorf("coordinates = %v, want [lng lat]", points[0].Coordinates)
	}
	if points[0].ID != body["id"] {
		t.Errorf("id = %q, response id = %v", points[0].ID, body["id"])
	}

	status, _ = doRequest(t, app, http.MethodPost, "/tracking/guardar", `{"lat": "19.43", "lng": -99.13, "IDTrip": 12}`)
	if status != http.StatusBadRequest {
		t.Fatalf("string lat = %d, want 400", status)
	}
	status, _ = doRequest(t, app, http.MethodPost, "/tracking/guardar", `{"lat": 19.43, "IDTrip": 12}`)
	if status != http.StatusBadRequest {
		t.Fatalf("missing lng = %d, want 400", status)
	}
}

func TestHealth(t *testing.T) {
	store := seedStore(t)

	status, body := doRequest(t, newApp(store, newLifecycle(store)), http.MethodGet, "/health", "")
	if status != http.StatusOK || body["status"] != "OK" {
		t.Fatalf("GET /health = %d %v", status, body)
	}

	down := downStore{MemoryStore: store}
	status, _ = doRequest(t, newApp(down, newLifecycle(down)), http.MethodGet, "/health", "")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("GET /health with store down = %d, want 503", status)
	}
}
