package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bgm-radar/internal/config"
	"bgm-radar/internal/domain"
	"bgm-radar/internal/filter"
	"bgm-radar/internal/handler"
	"bgm-radar/internal/keywords"
	"bgm-radar/internal/quota"
	"bgm-radar/internal/repository"
	"bgm-radar/internal/service"
	"bgm-radar/internal/service/auth"
	"bgm-radar/internal/service/youtube"
	"bgm-radar/pkg/database"
	"bgm-radar/pkg/errors"
	"bgm-radar/pkg/logger"
	"bgm-radar/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	RedisClient  *redis.Client
	Postgres     *database.PostgresDB
	SQLite       *database.SQLiteDB
	Repositories *repository.Repositories
	Cache        *service.CacheService
	Auth         *auth.Service
	Quota        *quota.Tracker
	Keywords     *keywords.Source
	Filter       *filter.Filter
	Services     *service.Services

	youtube    service.YouTubeClient
	youtubeErr error
	clock      service.Clock

	mu       sync.Mutex
	memories map[string]*repository.Repositories
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   logger,
		clock:    time.Now,
		memories: make(map[string]*repository.Repositories),
	}

	// Redis is optional: without it stats are not cached and quota is not shared
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			c.RedisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching")
	}
	c.Cache = service.NewCacheService(c.RedisClient, repository.DefaultTenant, logger.Logger)

	if err := c.openStore(ctx); err != nil {
		c.Close()
		return nil, err
	}
	repos, err := c.repositoriesFor(repository.DefaultTenant)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Repositories = repos

	c.Keywords = keywords.NewSource(logger, config.KeywordOverride(cfg.KeywordsFile))
	c.Filter = filter.NewFilter(filter.NewClassifier(c.Keywords.Vocabulary()), logger)
	c.Auth = auth.NewService(cfg.APIJWTSecret, logger)

	cred, err := cfg.CredentialProvider().Resolve()
	if err == nil {
		c.youtube, err = c.newYouTube(ctx, cred)
	}
	if err != nil {
		logger.WithError(err).Warn("YouTube client unavailable, collection and tracking are disabled")
		c.youtubeErr = err
		c.youtube = unavailableYouTube{err: err}
	} else {
		logger.WithField("credential", cred.Source).Info("YouTube client initialized")
	}

	c.Quota = c.newTracker(ctx, c.Cache)

	collector, tracker := c.pipeline(c.youtube, c.Repositories, c.Quota, c.Cache)
	catalog := service.NewChannelService(c.Repositories.Channels, c.Cache, c.clock, logger)

	tenants, err := config.LoadTenants(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	base, err := config.PresetFor(config.ModeBatch)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Services = &service.Services{
		Collector: collector,
		Intake:    collector,
		Tracker:   tracker,
		Catalog:   catalog,
		Batch:     service.NewBatchService(tenants, cfg.BatchSize, base, c.tenantRuntime, logger),
		Cache:     c.Cache,
	}

	logger.WithFields(map[string]interface{}{
		"store":   cfg.StoreDriver,
		"redis":   c.RedisClient != nil,
		"tenants": len(tenants),
	}).Info("Container initialized")
	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	switch c.Config.StoreDriver {
	case config.StorePostgres:
		db, err := database.NewPostgresDB(ctx, c.Config.DatabaseURL)
		if err != nil {
			return errors.NewConfigurationError("Failed to connect to database", err)
		}
		c.Postgres = db
	case config.StoreSQLite:
		db, err := database.NewSQLiteDB(ctx, c.Config.SQLitePath)
		if err != nil {
			return errors.NewConfigurationError("Failed to open sqlite store", err)
		}
		c.SQLite = db
	case config.StoreMemory:
		c.Logger.Warn("Using in-memory store, data is lost on exit")
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown store driver %q", c.Config.StoreDriver), nil)
	}
	return nil
}

// repositoriesFor scopes the configured store to one tenant.
func (c *Container) repositoriesFor(tenant string) (*repository.Repositories, error) {
	switch {
	case c.Postgres != nil:
		return repository.NewPostgresRepositories(c.Postgres, tenant), nil
	case c.SQLite != nil:
		return repository.NewSQLiteRepositories(c.SQLite, tenant), nil
	case c.Config.StoreDriver == config.StoreMemory:
		c.mu.Lock()
		defer c.mu.Unlock()
		repos, ok := c.memories[tenant]
		if !ok {
			repos = repository.NewMemoryRepositories()
			c.memories[tenant] = repos
		}
		return repos, nil
	}
	return nil, errors.NewConfigurationError("store is not open", nil)
}

func (c *Container) newYouTube(ctx context.Context, cred config.Credential) (*youtube.Client, error) {
	return youtube.NewClient(ctx, cred, youtube.Settings{
		RegionCode:        c.Config.YouTubeRegion,
		RelevanceLanguage: c.Config.YouTubeLanguage,
		CallTimeout:       c.Config.CallTimeout,
	}, c.Logger)
}

// newTracker starts a tracker with the units other processes already spent today.
func (c *Container) newTracker(ctx context.Context, cache *service.CacheService) *quota.Tracker {
	tracker := quota.NewTracker(c.Config.DailyQuotaLimit, c.Logger)
	if used := cache.QuotaUsed(ctx, quota.Day(c.clock())); used > 0 {
		tracker.Preload(used)
		c.Logger.WithField("used", used).Info("Loaded shared quota usage")
	}
	return tracker
}

func (c *Container) pipeline(yt service.YouTubeClient, repos *repository.Repositories, tracker *quota.Tracker, cache *service.CacheService) (*service.CollectionService, *service.TrackingService) {
	collector := service.NewCollectionService(service.CollectionDeps{
		YouTube:  yt,
		Channels: repos.Channels,
		Tracker:  tracker,
		Keywords: c.Keywords,
		Filter:   c.Filter,
		Cache:    cache,
		Locker:   cache,
		Clock:    c.clock,
		Logger:   c.Logger,
	}, service.CollectionSettings{
		SearchDelay:        c.Config.SearchDelay,
		ChannelDelay:       c.Config.ChannelDelay,
		MaxPlaylistPages:   c.Config.MaxPlaylistPages,
		ChannelConcurrency: c.Config.ChannelConcurrency,
	})

	tracking := service.NewTrackingService(service.TrackingDeps{
		YouTube:   yt,
		Channels:  repos.Channels,
		Snapshots: repos.Snapshots,
		Tracker:   tracker,
		Cache:     cache,
		Clock:     c.clock,
		Logger:    c.Logger,
	}, c.Config.TrackingDelay)

	return collector, tracking
}

// tenantRuntime builds an isolated pipeline: the tenant's own key, quota and store namespace.
func (c *Container) tenantRuntime(ctx context.Context, tenant config.Tenant) (*service.TenantRuntime, error) {
	cred, err := config.NewCredentialProvider(config.StaticAPIKey("tenant:"+tenant.ID, tenant.APIKey)).Resolve()
	if err != nil {
		return nil, err
	}
	yt, err := c.newYouTube(ctx, cred)
	if err != nil {
		return nil, err
	}
	repos, err := c.repositoriesFor(tenant.ID)
	if err != nil {
		return nil, err
	}

	cache := c.Cache.ForTenant(tenant.ID)
	collector, tracker := c.pipeline(yt, repos, c.newTracker(ctx, cache), cache)
	return &service.TenantRuntime{Collector: collector, Tracker: tracker}, nil
}

// RequireYouTube returns the reason the YouTube client could not be built, if any.
func (c *Container) RequireYouTube() error {
	return c.youtubeErr
}

// HealthChecks returns the probes of every configured backend
func (c *Container) HealthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if c.RedisClient != nil {
		checks["redis"] = c.Cache.HealthCheck
	}
	if c.Postgres != nil {
		checks["database"] = c.Postgres.Health
	}
	if c.SQLite != nil {
		checks["database"] = c.SQLite.Health
	}
	return checks
}

// Close releases every backend connection. It is safe to call more than once.
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close Redis connection")
		}
		c.RedisClient = nil
	}
	if c.Postgres != nil {
		c.Postgres.Close()
		c.Postgres = nil
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			c.Logger.WithError(err).Warn("Failed to close sqlite store")
		}
		c.SQLite = nil
	}
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// unavailableYouTube stands in for the client when no credential resolved.
type unavailableYouTube struct {
	err error
}

func (u unavailableYouTube) SearchVideos(context.Context, domain.SearchQuery) ([]domain.SearchResult, error) {
	return nil, u.err
}

func (u unavailableYouTube) GetChannel(context.Context, string) (*domain.ChannelCandidate, error) {
	return nil, u.err
}

func (u unavailableYouTube) ScanPlaylist(context.Context, string, domain.PlaylistDirection, int) (*domain.PlaylistScan, error) {
	return nil, u.err
}
