package database

import (
	"context"
	"fmt"

	"github.com/tieubaoca/tables-retriever/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NewMongoClient connects to cfg.URI and pings the primary.
func NewMongoClient(ctx context.Context, cfg config.MongoDBConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URI).
		SetBSONOptions(
			&options.BSONOptions{
				ObjectIDAsHexString: true,
			},
		))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// QueryLogCollection returns the collection query logs are written to.
func QueryLogCollection(client *mongo.Client, cfg config.MongoDBConfig) *mongo.Collection {
	return client.Database(cfg.Database).Collection(cfg.Collection)
}
