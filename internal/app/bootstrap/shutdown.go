// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, then tears down the event publisher and
// DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.app != nil {
		if deps.app.reconciler != nil {
			deps.app.reconciler.Stop()
		}
		if deps.app.limiter != nil {
			deps.app.limiter.Stop()
		}
	}

	if deps.Events != nil {
		if err := deps.Events.Close(); err != nil {
			logger.Warn("event publisher close failed", zap.Error(err))
		}
	}

	if deps.ClubMongoClient != nil {
		logger.Info("disconnecting ClubHub MongoDB client")
		if err := deps.ClubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
