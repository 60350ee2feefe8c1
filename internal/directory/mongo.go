package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"concur/pkg/platform/sentinel"
)

const (
	collectionPointsCollection = "collection_points"
	defaultMongoTimeout        = 5 * time.Second
)

// Mongo reads collection points from the directory-management database.
// This service never writes to it.
type Mongo struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
}

// MongoOption configures a Mongo directory.
type MongoOption func(*Mongo)

// WithMongoTimeout bounds each lookup.
func WithMongoTimeout(d time.Duration) MongoOption {
	return func(m *Mongo) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewMongo constructs a Mongo-backed Directory.
func NewMongo(client *mongo.Client, database string, opts ...MongoOption) *Mongo {
	m := &Mongo{
		client:   client,
		database: database,
		timeout:  defaultMongoTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Mongo) CollectionPoint(ctx context.Context, cpID, applicationID string) (*CollectionPoint, error) {
	c := m.client.Database(m.database).Collection(collectionPointsCollection)
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	filter := bson.M{"_id": cpID, "application_id": applicationID}
	var cp CollectionPoint
	if err := c.FindOne(ctx, filter).Decode(&cp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find collection point %s: %w", cpID, err)
	}
	return &cp, nil
}
