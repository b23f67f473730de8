package settings

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSettingsCollection is the collection holding one document per settings name.
const MongoSettingsCollection = "settings"

// MongoStore keeps documents in MongoDB, one per settings name with _id = name.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to uri and uses the settings collection of database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo settings store: MONGODB_URI not set")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(MongoSettingsCollection),
	}, nil
}

// Read implements Store.
func (m *MongoStore) Read(ctx context.Context, name string) (Document, error) {
	var raw bson.M
	err := m.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %q: %w", name, err)
	}
	delete(raw, "_id")
	return normalize(raw)
}

// Write implements Store.
func (m *MongoStore) Write(ctx context.Context, name string, fields Document) error {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("writing settings %q: %w", name, err)
	}
	return nil
}

// Close implements Store.
func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
