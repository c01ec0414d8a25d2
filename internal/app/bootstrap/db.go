// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/clubhub/internal/app/system/events"
	"github.com/dalemusser/clubhub/internal/app/system/indexes"
	"github.com/dalemusser/clubhub/internal/app/system/timeouts"
	"github.com/dalemusser/clubhub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and, when configured, RabbitMQ.
//
// A failed Mongo ping aborts startup. A failed AMQP dial does not: bookings
// and payments work without events, so the app logs and publishes nowhere.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetAppName("clubhub").
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	cctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		logger.Error("mongo connect failed", zap.Error(err))
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", zap.Error(err))
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool_size", appCfg.MongoMinPoolSize))

	return DBDeps{
		ClubMongoClient:   client,
		ClubMongoDatabase: client.Database(appCfg.MongoDatabase),
		Events:            connectEvents(appCfg, logger),
		app:               &services{},
	}, nil
}

func connectEvents(appCfg AppConfig, logger *zap.Logger) events.Publisher {
	if appCfg.AMQPURL == "" {
		logger.Info("lifecycle events disabled (no amqp_url)")
		return events.Nop{}
	}
	pub, err := events.Dial(appCfg.AMQPURL, appCfg.AMQPExchange)
	if err != nil {
		logger.Error("amqp dial failed; lifecycle events disabled", zap.Error(err))
		return events.Nop{}
	}
	logger.Info("publishing lifecycle events", zap.String("exchange", appCfg.AMQPExchange))
	return pub
}

// EnsureSchema creates collections with their JSON-Schema validators, then
// the indexes the stores rely on (the unique payment keys in particular).
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.ClubMongoDatabase); err != nil {
		logger.Error("collection validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.ClubMongoDatabase); err != nil {
		logger.Error("index setup failed", zap.Error(err))
		return err
	}
	return nil
}
