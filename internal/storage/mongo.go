package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/coldtruck/coldtruck-backend/internal/models"
)

// Collection names shared with the mobile backend
const (
	tripCollection       = "trip"
	userCollection       = "user"
	truckCollection      = "truck"
	boxCollection        = "box"
	routeCollection      = "rute"
	cargoTypeCollection  = "cargoType"
	alertCollection      = "alert"
	trackingCollection   = "tracking"
	assignmentCollection = "user_truck"
)

// MongoStore implements Store on MongoDB. Units of work use multi-document
// transactions, so the deployment must be a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore creates a MongoDB-backed storage
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
	}
}

// EnsureIndexes creates the indexes lookups and the expiry sweep rely on
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		tripCollection: {
			{Keys: bson.D{{Key: "IDDriver", Value: 1}, {Key: "scheduledDepartureDate", Value: 1}}},
			{Keys: bson.D{{Key: "IDTruck", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledArrivalDate", Value: 1}}},
		},
		userCollection: {
			{Keys: bson.M{"email": 1}, Options: options.Index().SetUnique(true)},
		},
		trackingCollection: {
			{Keys: bson.D{{Key: "IDTrip", Value: 1}, {Key: "dateTime", Value: 1}}},
		},
		assignmentCollection: {
			{Keys: bson.D{{Key: "IDDriver", Value: 1}, {Key: "dateStart", Value: -1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, collection string, filter interface{}, out interface{}, entity string, key interface{}) error {
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %v: %w", entity, key, ErrNotFound)
	}
	return err
}

func (s *MongoStore) insertOne(ctx context.Context, collection string, doc interface{}, entity string, key interface{}) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %v: %w", entity, key, ErrDuplicate)
	}
	return err
}

// Trip operations
func (s *MongoStore) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := s.findOne(ctx, tripCollection, bson.M{"_id": id}, &trip, "trip", id); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (s *MongoStore) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	query := bson.M{}
	if filter.DriverID != nil {
		query["IDDriver"] = *filter.DriverID
	}
	if filter.TruckID != nil {
		query["IDTruck"] = *filter.TruckID
	}
	if len(filter.ExcludeStatuses) > 0 {
		query["status"] = bson.M{"$nin": filter.ExcludeStatuses}
	}

	direction := -1
	if filter.Ascending {
		direction = 1
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "scheduledDepartureDate", Value: direction},
		{Key: "_id", Value: 1},
	})

	cursor, err := s.db.Collection(tripCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var trips []*models.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (s *MongoStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	normalizeTrip(trip, time.Now())
	return s.insertOne(ctx, tripCollection, trip, "trip", trip.ID)
}

func (s *MongoStore) CancelExpiredTrips(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		ids = nil
		coll := s.db.Collection(tripCollection)
		filter := bson.M{
			"status":               models.TripStatusScheduled,
			"scheduledArrivalDate": bson.M{"$lt": now},
		}

		cursor, err := coll.Find(sc, filter, options.Find().
			SetProjection(bson.M{"_id": 1}).
			SetSort(bson.M{"_id": 1}))
		if err != nil {
			return err
		}
		var docs []struct {
			ID uint `bson:"_id"`
		}
		if err := cursor.All(sc, &docs); err != nil {
			return err
		}
		if len(docs) == 0 {
			return nil
		}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}

		_, err = coll.UpdateMany(sc,
			bson.M{"_id": bson.M{"$in": ids}, "status": models.TripStatusScheduled},
			bson.M{"$set": bson.M{"status": models.TripStatusCanceled, "updatedAt": now}},
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// User operations
func (s *MongoStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, userCollection, bson.M{"_id": id}, &user, "user", id); err != nil {
		return nil, err
	}
	return &user, nil
}

func emailFilter(email string) bson.M {
	return bson.M{"email": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(email) + "$", Options: "i"}}
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.findOne(ctx, userCollection, emailFilter(email), &user, "user", email); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	cursor, err := s.db.Collection(userCollection).Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	count, err := s.db.Collection(userCollection).CountDocuments(ctx, emailFilter(user.Email))
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("email %q: %w", user.Email, ErrDuplicate)
	}
	normalizeStatus(&user.Status)
	return s.insertOne(ctx, userCollection, user, "user", user.ID)
}

// Truck operations
func (s *MongoStore) GetTruck(ctx context.Context, id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := s.findOne(ctx, truckCollection, bson.M{"_id": id}, &truck, "truck", id); err != nil {
		return nil, err
	}
	return &truck, nil
}

func (s *MongoStore) CreateTruck(ctx context.Context, truck *models.Truck) error {
	normalizeStatus(&truck.Status)
	return s.insertOne(ctx, truckCollection, truck, "truck", truck.ID)
}

func (s *MongoStore) GetActiveTruckAssignment(ctx context.Context, driverID uint) (*models.TruckAssignment, error) {
	var assignment models.TruckAssignment
	err := s.db.Collection(assignmentCollection).FindOne(ctx,
		bson.M{"IDDriver": driverID, "dateEnd": nil},
		options.FindOne().SetSort(bson.M{"dateStart": -1}),
	).Decode(&assignment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("assignment for driver %d: %w", driverID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (s *MongoStore) CreateTruckAssignment(ctx context.Context, assignment *models.TruckAssignment) error {
	_, err := s.db.Collection(assignmentCollection).InsertOne(ctx, assignment)
	return err
}

// Box operations
func (s *MongoStore) GetBox(ctx context.Context, id uint) (*models.Box, error) {
	var box models.Box
	if err := s.findOne(ctx, boxCollection, bson.M{"_id": id}, &box, "box", id); err != nil {
		return nil, err
	}
	return &box, nil
}

func (s *MongoStore) CreateBox(ctx context.Context, box *models.Box) error {
	normalizeStatus(&box.Status)
	return s.insertOne(ctx, boxCollection, box, "box", box.ID)
}

// Route and cargo type operations
func (s *MongoStore) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	if err := s.findOne(ctx, routeCollection, bson.M{"_id": id}, &route, "route", id); err != nil {
		return nil, err
	}
	return &route, nil
}

func (s *MongoStore) CreateRoute(ctx context.Context, route *models.Route) error {
	return s.insertOne(ctx, routeCollection, route, "route", route.ID)
}

func (s *MongoStore) GetCargoType(ctx context.Context, id uint) (*models.CargoType, error) {
	var cargoType models.CargoType
	if err := s.findOne(ctx, cargoTypeCollection, bson.M{"_id": id}, &cargoType, "cargo type", id); err != nil {
		return nil, err
	}
	return &cargoType, nil
}

func (s *MongoStore) CreateCargoType(ctx context.Context, cargoType *models.CargoType) error {
	return s.insertOne(ctx, cargoTypeCollection, cargoType, "cargo type", cargoType.ID)
}

func (s *MongoStore) GetAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.findOne(ctx, alertCollection, bson.M{"_id": id}, &alert, "alert", id); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *MongoStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	return s.insertOne(ctx, alertCollection, alert, "alert", alert.ID)
}

// Tracking operations
func (s *MongoStore) SaveTracking(ctx context.Context, tracking *models.Tracking) error {
	return s.insertOne(ctx, trackingCollection, tracking, "tracking", tracking.ID)
}

// withTransaction starts a session, runs fn in a snapshot transaction and
// always ends the session. The driver retries fn on transient errors such
// as write conflicts, so fn must be safe to run more than once.
func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txnOpts)
	return err
}

// WithinTx runs fn in a multi-document transaction
func (s *MongoStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return fn(&mongoTx{db: s.db, sc: sc})
	})
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// mongoTx binds every operation to the session context of its transaction;
// the per-call context is only checked for cancellation.
type mongoTx struct {
	db *mongo.Database
	sc mongo.SessionContext
}

func (t *mongoTx) get(ctx context.Context, collection string, id uint, out interface{}, entity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := t.db.Collection(collection).FindOne(t.sc, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return err
}

func (t *mongoTx) set(ctx context.Context, collection string, id uint, fields bson.M, entity string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := t.db.Collection(collection).UpdateOne(t.sc, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

func (t *mongoTx) GetTrip(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := t.get(ctx, tripCollection, id, &trip, "trip"); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (t *mongoTx) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := t.get(ctx, userCollection, id, &user, "user"); err != nil {
		return nil, err
	}
	return &user, nil
}

func (t *mongoTx) GetTruck(ctx context.Context, id uint) (*models.Truck, error) {
	var truck models.Truck
	if err := t.get(ctx, truckCollection, id, &truck, "truck"); err != nil {
		return nil, err
	}
	return &truck, nil
}

func (t *mongoTx) GetBox(ctx context.Context, id uint) (*models.Box, error) {
	var box models.Box
	if err := t.get(ctx, boxCollection, id, &box, "box"); err != nil {
		return nil, err
	}
	return &box, nil
}

func (t *mongoTx) SetTripStatus(ctx context.Context, id uint, status models.TripStatus) error {
	return t.set(ctx, tripCollection, id, bson.M{"status": status, "updatedAt": time.Now()}, "trip")
}

func (t *mongoTx) SetUserStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	return t.set(ctx, userCollection, id, bson.M{"status": status}, "user")
}

func (t *mongoTx) SetTruckStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	return t.set(ctx, truckCollection, id, bson.M{"status": status}, "truck")
}

func (t *mongoTx) SetBoxStatus(ctx context.Context, id uint, status models.ResourceStatus) error {
	return t.set(ctx, boxCollection, id, bson.M{"status": status}, "box")
}
