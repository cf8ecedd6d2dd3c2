package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup, but only in dev
// with STOREFRONT_AUTO_MIGRATE on. Every other environment migrates through
// cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}

	dialect := Dialect(cfg.DB)
	started := time.Now()
	if err := ApplyEmbedded(ctx, sqlDB, dialect); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"dialect":     dialect,
		"duration_ms": time.Since(started).Milliseconds(),
	}), "migrate.auto_applied")
	return nil
}
