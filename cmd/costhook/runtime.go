package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	costhook "github.com/goliatone/go-costhook"
	"github.com/goliatone/go-costhook/adapters/gojob"
	"github.com/goliatone/go-costhook/adapters/gologger"
	"github.com/goliatone/go-costhook/auth"
	"github.com/goliatone/go-costhook/core"
	"github.com/goliatone/go-costhook/httpapi"
	costhookmigrations "github.com/goliatone/go-costhook/migrations"
	"github.com/goliatone/go-costhook/providers"
	"github.com/goliatone/go-costhook/ratelimit"
	"github.com/goliatone/go-costhook/scheduler"
	"github.com/goliatone/go-costhook/security"
	redislock "github.com/goliatone/go-costhook/store/redis"
	sqlstore "github.com/goliatone/go-costhook/store/sql"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-costhook" }

// openDatabase connects and registers the embedded migrations for the
// configured dialect. Migrations are not applied here.
func openDatabase(ctx context.Context, cfg databaseConfig) (*persistence.Client, error) {
	migrationLabel, err := costhookmigrations.DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	var dialect schema.Dialect = sqlitedialect.New()
	if migrationLabel == costhookmigrations.DialectPostgres {
		dialect = pgdialect.New()
	}
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: cfg.Driver, dsn: cfg.DSN, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}
	_, err = costhookmigrations.Register(ctx, func(_ context.Context, dialectName string, _ string, fsys fs.FS) error {
		if dialectName == migrationLabel {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, costhookmigrations.WithDialects(migrationLabel))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("register migrations: %w", err)
	}
	return client, nil
}

func newSecretProvider(cfg securityConfig) (*security.KeyRing, error) {
	active, err := security.NewAppKeySecretProviderFromString(cfg.EncryptionKey,
		security.WithKeyID(cfg.KeyID),
		security.WithVersion(cfg.KeyVersion),
	)
	if err != nil {
		return nil, fmt.Errorf("active encryption key: %w", err)
	}
	opts := make([]security.KeyRingOption, 0, len(cfg.RetiredKeys))
	for i, retired := range cfg.RetiredKeys {
		provider, err := security.NewAppKeySecretProviderFromString(retired.Key,
			security.WithKeyID(retired.KeyID),
			security.WithVersion(retired.Version),
		)
		if err != nil {
			return nil, fmt.Errorf("retired encryption key %d: %w", i, err)
		}
		opts = append(opts, security.WithRetiredKey(provider))
	}
	return security.NewKeyRing(active, opts...)
}

// resolveServiceConfig merges the costhook file section over the defaults the
// same way the service does.
func resolveServiceConfig(ctx context.Context, cfg appConfig) (core.Config, error) {
	defaults := costhook.DefaultConfig()
	loaded, err := cfg.configProvider().Load(ctx, defaults)
	if err != nil {
		return core.Config{}, fmt.Errorf("load service config: %w", err)
	}
	return core.GoOptionsResolver{}.Resolve(defaults, loaded, core.Config{})
}

// runtime holds every long-lived component of the serve command.
type runtime struct {
	logger    glog.Logger
	client    *persistence.Client
	service   *core.Service
	scheduler *scheduler.Scheduler
	queue     *gojob.MemoryQueue
	consumer  *gojob.SyncTriggerConsumer
	server    *httpapi.Server
	closers   []func() error
}

func buildRuntime(ctx context.Context, cfg appConfig, provider glog.LoggerProvider, logger glog.Logger) (*runtime, error) {
	loggers := gologger.NewLoggers(provider, logger)
	rt := &runtime{logger: loggers.Component(gologger.ComponentServe)}
	fail := func(err error) (*runtime, error) {
		rt.Close()
		return nil, err
	}

	client, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return fail(err)
	}
	rt.client = client
	rt.closers = append(rt.closers, client.Close)
	if err := client.Migrate(ctx); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}

	factoryOpts := []sqlstore.FactoryOption{}
	if cfg.Cache.TTL > 0 {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.Cache.TTL
		cacheService, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return fail(fmt.Errorf("profile cache: %w", err))
		}
		factoryOpts = append(factoryOpts, sqlstore.WithProfileCache(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		return fail(err)
	}

	secrets, err := newSecretProvider(cfg.Security)
	if err != nil {
		return fail(err)
	}

	registry, err := core.NewAdapterRegistry()
	if err != nil {
		return fail(err)
	}
	httpClient := providers.NewClient(providers.WithUserAgent("go-costhook"))
	if err := costhook.RegisterBuiltinProviders(registry, costhook.DefaultBuiltinProviderConfig(), httpClient); err != nil {
		return fail(err)
	}

	serviceCfg, err := resolveServiceConfig(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	serviceOpts := []core.Option{
		costhook.WithLoggerProvider(loggers.Provider()),
		costhook.WithLogger(loggers.Component(gologger.ComponentService)),
		costhook.WithConfigProvider(cfg.configProvider()),
		costhook.WithOptionsResolver(core.GoOptionsResolver{}),
		costhook.WithRepositoryFactory(factory),
		costhook.WithSecretProvider(secrets),
		costhook.WithAdapterRegistry(registry),
		costhook.WithCallLimiter(ratelimit.NewTypeLimiter(serviceCfg.RateLimit)),
	}
	if cfg.Redis.URL != "" {
		locker, err := redislock.NewLockerFromURL(ctx, cfg.Redis.URL, redislock.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err != nil {
			return fail(fmt.Errorf("redis locker: %w", err))
		}
		rt.closers = append(rt.closers, locker.Close)
		serviceOpts = append(serviceOpts, costhook.WithInstanceLocker(locker))
	}
	// A zero runtime layer lets the file values override the defaults.
	service, err := costhook.NewService(costhook.Config{}, serviceOpts...)
	if err != nil {
		return fail(err)
	}
	rt.service = service

	sched, err := scheduler.NewForService(service, scheduler.WithLogger(loggers.Component(gologger.ComponentScheduler)))
	if err != nil {
		return fail(err)
	}
	rt.scheduler = sched

	// User-triggered syncs travel through the job queue before reaching the
	// scheduler so duplicate requests collapse on the idempotency key.
	rt.queue = gojob.NewMemoryQueue()
	service.AttachSyncRuntime(gojob.NewSyncTrigger(gojob.NewEnqueuerAdapter(rt.queue)), sched)
	jobLogger := loggers.Component(gologger.ComponentJobs)
	rt.consumer = gojob.NewSyncTriggerConsumer(
		gojob.NewDequeuerAdapter(rt.queue, gojob.RetryPolicyFromSync(service.Config().Sync)),
		sched,
		gojob.WithConsumerLogger(jobLogger),
		gojob.WithConsumerHook(gojob.NewWorkerHookAdapter(gojob.NewLoggingHook(jobLogger))),
	)

	facade, err := costhook.NewFacade(service)
	if err != nil {
		return fail(err)
	}
	verifier, err := auth.NewVerifier(cfg.Security.JWTSecret, auth.WithAudience(cfg.Security.JWTAudience))
	if err != nil {
		return fail(err)
	}
	server, err := httpapi.NewServer(facade, verifier, httpapi.WithLogger(loggers.Component(gologger.ComponentHTTP)))
	if err != nil {
		return fail(err)
	}
	rt.server = server
	return rt, nil
}

// Start launches the scheduler and the trigger consumer. Both stop when ctx
// is cancelled.
func (rt *runtime) Start(ctx context.Context) error {
	if err := rt.scheduler.Start(ctx); err != nil {
		return err
	}
	go func() {
		if err := rt.consumer.Run(ctx); err != nil {
			rt.logger.Error("sync trigger consumer stopped", "error", err)
		}
	}()
	return nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.scheduler != nil {
		rt.scheduler.Stop()
	}
	if rt.queue != nil {
		rt.queue.Close()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Warn("close runtime resource", "error", err)
		}
	}
	rt.closers = nil
}
