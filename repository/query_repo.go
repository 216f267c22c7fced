package repository

import (
	"context"

	"github.com/tieubaoca/tables-retriever/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type QueryLogRepo interface {
	CreateQueryLog(ctx context.Context, log *types.QueryLog) error
	ListRecent(ctx context.Context, limit int64) ([]*types.QueryLog, error)
}

type queryLogRepo struct {
	collection *mongo.Collection
}

func NewQueryLogRepo(collection *mongo.Collection) QueryLogRepo {
	return &queryLogRepo{
		collection: collection,
	}
}

func (r *queryLogRepo) CreateQueryLog(ctx context.Context, log *types.QueryLog) error {
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

func (r *queryLogRepo) ListRecent(ctx context.Context, limit int64) ([]*types.QueryLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*types.QueryLog
	for cursor.Next(ctx) {
		var log types.QueryLog
		if err := cursor.Decode(&log); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, cursor.Err()
}
