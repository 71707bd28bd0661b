package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/go-grader/src/grader"
)

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

const mongoCloseTimeout = 5 * time.Second

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (ms *MongoStore) Save(ctx context.Context, res grader.FinalResult) error {
	_, err := ms.collection.ReplaceOne(ctx, bson.M{"_id": res.ID}, res, options.Replace().SetUpsert(true))
	return err
}

func (ms *MongoStore) Get(ctx context.Context, id string) (grader.FinalResult, error) {
	var res grader.FinalResult
	err := ms.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return grader.FinalResult{}, ErrNotFound
	}
	if err != nil {
		return grader.FinalResult{}, err
	}
	return res, nil
}

func (ms *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
