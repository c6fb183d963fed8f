package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/coldtruck/coldtruck-backend/database"
)

// openMongoStore needs a replica set, transactions are not available on a
// standalone server.
func openMongoStore(t *testing.T, uri string) *MongoStore {
	t.Helper()
	ctx := context.Background()

	client, err := database.ConnectMongo(ctx, uri)
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}

	dbName := fmt.Sprintf("coldtruck_test_%d", time.Now().UnixNano())
	store := NewMongoStore(client, dbName)
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return store
}
