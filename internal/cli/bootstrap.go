package cli

import (
	"context"
	"fmt"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/config"
	"facture-workflow/internal/pkg/cache"
	"facture-workflow/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime is the shared state every subcommand starts from
type runtime struct {
	cfg   *config.Config
	db    *gorm.DB
	redis *redis.Client
	cache *cache.Cache
}

// bootstrap loads configuration, installs the logger, connects to the
// database and, when configured, to Redis. Migration runs when migrate
// is set.
func bootstrap(ctx context.Context, migrate bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if _, err := logger.Init(cfg.AppMode); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, db: db}

	if migrate {
		if err := models.AutoMigrate(db); err != nil {
			rt.close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		logger.L().Info("database migration completed")
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// reads still work without the cache
			logger.L().Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			rt.redis = client
			logger.L().Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}
	rt.cache = cache.NewCache(rt.redis, cfg.Redis.CacheTTL)

	return rt, nil
}

func (rt *runtime) close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if err := config.CloseDatabase(); err != nil {
		logger.L().Warn("close database", zap.Error(err))
	}
}
