package persistence

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-shop-service/internal/config"
)

// Mongo wraps a connected client and the configured database.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
	cfg      config.MongoConfig
}

// NewMongo connects to the document store when a URI is provided.
func NewMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Mongo, error) {
	if cfg.URI == "" {
		logger.Warn("MONGO_URI not provided; skipping document store connection")
		return &Mongo{cfg: cfg}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return &Mongo{Client: client, Database: client.Database(cfg.Database), cfg: cfg}, nil
}

// Connected reports whether a client was established.
func (m *Mongo) Connected() bool {
	return m != nil && m.Client != nil
}

// Users returns the handle of the users collection.
func (m *Mongo) Users() *mongo.Collection {
	if !m.Connected() {
		return nil
	}
	return m.Database.Collection(m.cfg.Collection)
}

// Ping verifies connectivity.
func (m *Mongo) Ping(ctx context.Context) error {
	if !m.Connected() {
		return errors.New("mongo client not configured")
	}
	return m.Client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) {
	if m.Connected() {
		_ = m.Client.Disconnect(ctx)
	}
}
