// Package app wires configuration into a running Meridian instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	memorycache "github.com/prn-tf/meridian/internal/cache/memory"
	rediscache "github.com/prn-tf/meridian/internal/cache/redis"
	"github.com/prn-tf/meridian/internal/config"
	"github.com/prn-tf/meridian/internal/handler"
	"github.com/prn-tf/meridian/internal/lock"
	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/query"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/repository/memory"
	"github.com/prn-tf/meridian/internal/repository/postgres"
	"github.com/prn-tf/meridian/internal/repository/sqlite"
	"github.com/prn-tf/meridian/internal/seed"
	"github.com/prn-tf/meridian/internal/service"
	"github.com/prn-tf/meridian/internal/storage"
)

// cacheCleanupInterval is how often the in-memory cache sweeps expired entries.
const cacheCleanupInterval = time.Minute

const defaultDialTimeout = 5 * time.Second

// App holds every long-lived component built from one Config.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Repos    *repository.Repositories
	Metrics  *metrics.Metrics
	Users    *service.UserService
	Products *service.ProductService

	// Reports and Scheduler are nil when reporting is disabled.
	Reports   *service.ReportService
	Scheduler *service.ReportScheduler

	closers []func() error
}

// New builds the application. On error every resource opened so far is released.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(prometheus.NewRegistry())
	}

	repos, err := OpenRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	a.Repos = repos
	a.closers = append(a.closers, repos.Close)

	var redisClient *redis.Client
	redisFor := func() *redis.Client {
		if redisClient == nil {
			redisClient = rediscache.NewClient(redisConfig(cfg.Redis))
			a.closers = append(a.closers, redisClient.Close)
		}
		return redisClient
	}

	users := repos.Users
	if cfg.Cache.Enabled {
		c, err := a.openCache(ctx, cfg, redisFor)
		if err != nil {
			return err
		}
		users = repository.NewCachedUserRepository(users, c, cfg.Cache.TTL, a.Metrics, logger)
	}

	if cfg.Seed.Enabled {
		if err := seedIfEmpty(ctx, users, repos.Products, logger); err != nil {
			return err
		}
	}

	a.Users = service.NewUserService(users, repos.UserQuery, a.Metrics, logger)
	a.Products = service.NewProductService(repos.Products, repos.ProductQuery, seed.Categories(), a.Metrics, logger)

	if cfg.Reports.Enabled {
		backend, err := openBackend(ctx, cfg.Reports, logger)
		if err != nil {
			return err
		}
		a.Reports = service.NewReportService(repos.UserQuery, repos.ProductQuery, backend, cfg.Reports.Prefix, a.Metrics, logger)

		var locker lock.Locker = lock.NewMemoryLocker()
		if cfg.Reports.Lock == config.LockRedis {
			locker = lock.NewRedisLocker(redisFor(), cfg.Redis.KeyPrefix)
		}
		a.Scheduler = service.NewReportScheduler(a.Reports, locker, cfg.Reports.Interval, logger)
	}

	return nil
}

func (a *App) openCache(ctx context.Context, cfg *config.Config, redisFor func() *redis.Client) (repository.Cache, error) {
	if cfg.Cache.Backend == config.CacheBackendRedis {
		client := redisFor()
		timeout := cfg.Redis.DialTimeout
		if timeout <= 0 {
			timeout = defaultDialTimeout
		}
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr(), err)
		}
		a.Logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Using redis user cache")
		return rediscache.New(client, cfg.Redis.KeyPrefix+"cache:"), nil
	}

	c := memorycache.NewCache(cacheCleanupInterval)
	a.closers = append(a.closers, func() error {
		c.Stop()
		return nil
	})
	a.Logger.Info().Msg("Using in-memory user cache")
	return c, nil
}

func redisConfig(c config.RedisConfig) rediscache.Config {
	return rediscache.Config{
		Addr:      c.Addr(),
		Password:  c.Password,
		DB:        c.DB,
		KeyPrefix: c.KeyPrefix,
	}
}

// OpenRepositories opens the store selected by cfg.Driver and applies
// pending migrations. Drivers without a native query tier get the scanning one.
func OpenRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		users := memory.NewUserRepository()
		products := memory.NewProductRepository()
		return &repository.Repositories{
			Users:        users,
			UserQuery:    users,
			Products:     products,
			ProductQuery: products,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return scanned(sqlite.NewUserRepository(db), sqlite.NewProductRepository(db), db), nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return scanned(postgres.NewUserRepository(db), postgres.NewProductRepository(db), db), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func scanned(users repository.UserRepository, products repository.ProductRepository, db repository.DatabaseHealth) *repository.Repositories {
	return &repository.Repositories{
		Users:        users,
		UserQuery:    query.NewUserScanner(users, time.Now),
		Products:     products,
		ProductQuery: query.NewProductScanner(products),
		Database:     db,
	}
}

func seedIfEmpty(ctx context.Context, users repository.UserRepository, products repository.ProductRepository, logger zerolog.Logger) error {
	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	m, err := products.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 || m > 0 {
		logger.Debug().Int("users", n).Int("products", m).Msg("Store not empty, skipping seed")
		return nil
	}
	if err := seed.Load(ctx, users, products); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	logger.Info().Msg("Loaded demo users and products")
	return nil
}

func openBackend(ctx context.Context, cfg config.ReportsConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Backend(client, cfg.S3.Bucket, logger), nil
	default:
		return storage.NewFilesystemBackend(cfg.Dir, logger)
	}
}

// Handler builds the HTTP router over the application's services.
func (a *App) Handler() http.Handler {
	metricsPath := ""
	if a.Metrics != nil {
		metricsPath = a.Config.Metrics.Path
	}
	return handler.NewRouter(handler.RouterConfig{
		Users:       a.Users,
		Products:    a.Products,
		Reports:     a.Reports,
		Database:    a.Repos.Database,
		Metrics:     a.Metrics,
		MetricsPath: metricsPath,
		CORSOrigins: a.Config.Server.CORSOrigins,
		MaxBodySize: a.Config.Server.MaxBodySize,
		Logger:      a.Logger,
	})
}

// Close stops the scheduler and releases resources in reverse order of opening.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
