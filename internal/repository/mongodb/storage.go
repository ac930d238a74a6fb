package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// Default database name, may be overridden by the connection URI path
	DefaultDatabase = "crop_userdb"

	connectTimeout = 10 * time.Second

	// Every repository operation is bounded by this timeout
	defaultOpTimeout = 5 * time.Second
)

// Connect to mongo and verify the connection with ping
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error while connecting to mongo. Err: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error while pinging mongo. Err: %w", err)
	}

	return client, nil
}

// Create unique index on users email
// Has to be called once at startup before serving requests
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error while creating users indexes. Err: %w", err)
	}

	return nil
}
