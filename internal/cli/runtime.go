package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"celeb-trivia-service/internal/app"
	"celeb-trivia-service/internal/catalog"
	"celeb-trivia-service/internal/config"
	"celeb-trivia-service/internal/infra/assets"
	"celeb-trivia-service/internal/infra/memory"
	"celeb-trivia-service/internal/infra/postgres"
	infraredis "celeb-trivia-service/internal/infra/redis"
	"celeb-trivia-service/internal/infra/sqlite"
	"celeb-trivia-service/internal/logging"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// runtime holds the connections a command opened, so they close together.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger

	pool    *pgxpool.Pool
	redis   *redis.Client
	closers []func()
}

func openRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logging.Setup(cfg.Log.Level)}

	if cfg.Store.Driver == config.DriverPostgres || cfg.Catalog.Source == config.SourcePostgres {
		if err := runMigrationsWithConfig(ctx, cfg, rt.logger); err != nil {
			return nil, err
		}
		rt.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, rt.pool.Close)
	}
	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = rt.redis.Close() })
	}
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func (rt *runtime) catalogLoader() catalog.Loader {
	if rt.cfg.Catalog.Source == config.SourcePostgres {
		return postgres.NewCatalogLoader(rt.pool)
	}
	c := rt.cfg.Catalog
	return catalog.NewFileLoader(c.NamesPath, c.DataPath, c.CategoriesPath)
}

func (rt *runtime) progressStore() (app.ProgressStore, app.LeaderboardReader, error) {
	switch rt.cfg.Store.Driver {
	case config.DriverPostgres:
		store := postgres.NewProgressStore(rt.pool)
		return store, store, nil
	case config.DriverSQLite:
		store, err := sqlite.New(rt.cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		return store, store, nil
	default:
		rt.logger.Warn("using in-memory progress store; progress is lost on restart")
		store := memory.NewProgressStore()
		return store, store, nil
	}
}

func (rt *runtime) gameService() (*app.GameService, error) {
	store, board, err := rt.progressStore()
	if err != nil {
		return nil, err
	}
	if rt.redis != nil {
		board = infraredis.NewLeaderboardCache(rt.redis, board, config.TTLDuration(rt.cfg.Redis.TTL, 30*time.Second))
	}

	resolver, err := assets.NewResolver(rt.cfg.Assets.ImageDir, rt.cfg.Assets.BaseURL, rt.cfg.Assets.DefaultImage)
	if err != nil {
		return nil, err
	}

	catalogTTL := config.TTLDuration(rt.cfg.Catalog.TTL, 10*time.Minute)
	return app.NewGameService(app.Dependencies{
		Catalog:     memory.NewCatalogRepository(rt.catalogLoader(), catalogTTL),
		Progress:    store,
		Leaderboard: board,
		Assets:      resolver,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	})
}
