// config/db.go
package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var dbLogger = log.New(os.Stdout, "[DB] ", log.LstdFlags)

// ConnectDB establishes the MongoDB connection and ensures the indexes
// the identity store relies on.
func ConnectDB() *mongo.Client {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
		dbLogger.Println("MONGO_URI not set, using default: " + mongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		dbLogger.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		dbLogger.Fatalf("Failed to ping MongoDB: %v", err)
	}

	dbLogger.Printf("Connected to MongoDB at %s", maskMongoURI(mongoURI))

	if err := setupCollections(ctx, client); err != nil {
		dbLogger.Fatalf("Failed to set up collections: %v", err)
	}

	return client
}

// GetCollection returns a handle into the configured database.
func GetCollection(client *mongo.Client, collectionName string) *mongo.Collection {
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "shopsy"
	}
	return client.Database(dbName).Collection(collectionName)
}

// setupCollections creates the unique indexes backing the identity
// uniqueness invariant, plus the TTL index that reaps registrations
// never verified before their deadline.
func setupCollections(ctx context.Context, client *mongo.Client) error {
	users := GetCollection(client, "users")

	uniqueFields := []string{"username", "email", "phoneNumber"}
	for _, field := range uniqueFields {
		_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_" + field),
		})
		if err != nil {
			return fmt.Errorf("failed to create unique index on %s: %w", field, err)
		}
	}

	// Unverified accounts expire at validTill; verified accounts never
	// carry the field, so the partial filter is belt and braces.
	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "validTill", Value: 1}},
		Options: options.Index().
			SetName("ttl_validTill").
			SetExpireAfterSeconds(0).
			SetPartialFilterExpression(bson.M{"isVerified": false}),
	})
	if err != nil {
		return fmt.Errorf("failed to create TTL index on validTill: %w", err)
	}

	dbLogger.Println("User collection indexes ensured")
	return nil
}

// maskMongoURI hides credentials before the URI reaches a log line.
func maskMongoURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	if at == -1 {
		return uri
	}
	scheme := strings.Index(uri, "://")
	if scheme == -1 {
		return uri
	}
	return uri[:scheme+3] + "***:***" + uri[at:]
}
