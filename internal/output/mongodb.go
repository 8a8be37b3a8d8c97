// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openshelf/bookscraper/pkg/types"
)

// MongoDBWriter persists records into one collection per variant. Keyed
// variants are upserted on their natural key; reviews are plain inserts.
type MongoDBWriter struct {
	client   *mongo.Client
	database *mongo.Database
	timeout  time.Duration
}

// NewMongoDBWriter connects to MongoDB ("mongodb://host:27017") and targets
// the given database.
func NewMongoDBWriter(uri, databaseName string) (*MongoDBWriter, error) {
	if uri == "" {
		return nil, fmt.Errorf("MongoDB URI is required")
	}
	if databaseName == "" {
		return nil, fmt.Errorf("MongoDB database name is required")
	}

	timeout := 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDBWriter{
		client:   client,
		database: client.Database(databaseName),
		timeout:  timeout,
	}, nil
}

// Write persists a mixed batch, collection by collection.
func (w *MongoDBWriter) Write(records []types.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	for variant, batch := range splitByVariant(records) {
		collection := w.database.Collection(tableNames[variant])

		if !keyedVariant(variant) {
			docs := make([]interface{}, 0, len(batch))
			for _, record := range batch {
				doc, err := document(record)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			if _, err := collection.InsertMany(ctx, docs); err != nil {
				return fmt.Errorf("insert into %s: %w", collection.Name(), err)
			}
			continue
		}

		for _, record := range batch {
			doc, err := document(record)
			if err != nil {
				return err
			}
			filter := bson.M{"record_key": record.Key()}
			doc["record_key"] = record.Key()
			opts := options.Replace().SetUpsert(true)
			if _, err := collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
				return fmt.Errorf("upsert into %s: %w", collection.Name(), err)
			}
		}
	}
	return nil
}

// Flush is a no-op; writes are not buffered.
func (w *MongoDBWriter) Flush() error { return nil }

// Close disconnects from MongoDB.
func (w *MongoDBWriter) Close() error {
	if w.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	err := w.client.Disconnect(ctx)
	w.client = nil
	return err
}
