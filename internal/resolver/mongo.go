package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ldn/internal/constants"
)

// RepositoryObject is one entry of the object registry collection.
type RepositoryObject struct {
	URL      string `bson:"url"`
	Handle   string `bson:"handle,omitempty"`
	ObjectID string `bson:"object_id"`
}

// MongoResolver looks URLs up in the repository object registry, matching
// either the canonical url or the handle.
type MongoResolver struct {
	collection *mongo.Collection
}

func NewMongoResolver(collection *mongo.Collection) *MongoResolver {
	return &MongoResolver{collection: collection}
}

func (r *MongoResolver) Name() string {
	return constants.ResolverTypeMongo
}

func (r *MongoResolver) Resolve(ctx context.Context, url string) (string, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"url": url},
		bson.M{"handle": url},
	}}
	opts := options.FindOne().SetProjection(bson.M{"object_id": 1})

	var obj RepositoryObject
	err := r.collection.FindOne(ctx, filter, opts).Decode(&obj)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("mongodb query failed: %w", err)
	}
	return obj.ObjectID, nil
}
