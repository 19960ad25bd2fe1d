package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/CloudShare/config"
	appmodel "github.com/sifan077/CloudShare/internal/app/model"
	apprepository "github.com/sifan077/CloudShare/internal/app/repository"
	appserver "github.com/sifan077/CloudShare/internal/app/server"
	"github.com/sifan077/CloudShare/internal/app/service"
	"github.com/sifan077/CloudShare/internal/app/store"
	inthttp "github.com/sifan077/CloudShare/internal/http/handler"
	"github.com/sifan077/CloudShare/internal/infra/logger"
	infraMinio "github.com/sifan077/CloudShare/internal/infra/minio"
	infraNATS "github.com/sifan077/CloudShare/internal/infra/nats"
	infraPostgres "github.com/sifan077/CloudShare/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/CloudShare/internal/infra/prometheus"
	infraRedis "github.com/sifan077/CloudShare/internal/infra/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := logger.FromEnv()
	log := logger.MustInit(logCfg)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.App.Addr),
		zap.String("site_name", cfg.App.SiteName),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("content_backend", cfg.Store.ContentBackend),
		zap.Bool("postgres_enabled", cfg.Postgres.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.Bool("clamav_enabled", cfg.ClamAV.Enabled),
		zap.Bool("admin_enabled", cfg.App.AdminPassword != ""),
	)
	if cfg.App.AdminPassword == "" {
		log.Warn("ADMIN_PASSWORD is not set; the admin API rejects every request")
	}

	checks := map[string]inthttp.Check{}

	// Record store
	var (
		base        store.Store
		redisClient *redis.Client
	)
	switch cfg.Store.Backend {
	case "redis":
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")
		base = store.NewRedisStore(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	default:
		log.Warn("Using in-memory store; records are lost on restart")
		base = store.NewMemoryStore()
	}

	if cfg.Store.ContentBackend == "minio" {
		minioClient, err := infraMinio.NewClient(ctx, cfg.Minio, log)
		if err != nil {
			log.Fatal("Failed to connect to MinIO", zap.Error(err))
		}
		log.Info("Connected to MinIO successfully", zap.String("bucket", cfg.Minio.Bucket))
		base = store.Split(base, store.NewMinioContentStore(minioClient, cfg.Minio.Bucket))
		checks["minio"] = func(ctx context.Context) error { return infraMinio.Ping(ctx, minioClient, cfg.Minio.Bucket) }
	}

	records := store.NewCachedStore(base, cfg.Store.MetaCacheSize, cfg.Store.MetaCacheTTL)

	// Access event archive
	var (
		eventRepo apprepository.AccessEventRepository
		pool      *pgxpool.Pool
	)
	if cfg.Postgres.Enabled {
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
		}
		defer sqlDB.Close()

		if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.AccessEvent{}); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}

		pool, err = infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()
		log.Info("Connected to Postgres successfully")

		eventRepo = apprepository.NewAccessEventRepository(gormDB)
		checks["postgres"] = func(ctx context.Context) error { return infraPostgres.Ping(ctx, pool) }
	}

	// Access event stream
	var publisher service.EventPublisher
	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

		if err := service.EnsureStream(js); err != nil {
			log.Fatal("Failed to prepare access stream", zap.Error(err))
		}
		publisher = service.NewAccessPublisher(js)
		checks["nats"] = func(context.Context) error {
			if natsConn.Status() != nats.CONNECTED {
				return errors.New(natsConn.Status().String())
			}
			return nil
		}

		if eventRepo != nil {
			consumer := service.NewAccessConsumer(js, log, eventRepo)
			if err := consumer.Start(); err != nil {
				log.Fatal("Failed to start access consumer", zap.Error(err))
			}
			defer consumer.Stop()
			log.Info("Access event consumer started")
		}
	}

	// Upload scanning
	var scanner service.Scanner
	if cfg.ClamAV.Enabled {
		clam := service.NewClamAVScanner(cfg.ClamAV.Address, log)
		if err := clam.Ping(); err != nil {
			log.Warn("ClamAV is not answering yet", zap.String("address", cfg.ClamAV.Address), zap.Error(err))
		}
		scanner = clam
		checks["clamav"] = func(context.Context) error { return clam.Ping() }
	}

	shares := service.NewShareService(service.ShareDeps{
		Logger:         log.Named("share"),
		Store:          records,
		Fetcher:        service.NewAgentFetcher(cfg.Subscription),
		Publisher:      publisher,
		Scanner:        scanner,
		MaxUploadBytes: cfg.App.MaxUploadBytes,
	})
	admin := service.NewAdminService(log.Named("admin"), records, eventRepo, cfg.App.AdminPassword)

	if cfg.Sweeper.Enabled {
		sweeper := service.NewExpirySweeper(log.Named("sweeper"), records, service.SweeperOptions{
			Interval:  cfg.Sweeper.Interval,
			Batch:     cfg.Sweeper.Batch,
			Events:    eventRepo,
			Retention: cfg.Sweeper.EventRetention,
		})
		sweeper.Start()
		defer sweeper.Stop()
		log.Info("Expiry sweeper started", zap.Duration("interval", cfg.Sweeper.Interval))
	}

	if !logCfg.Development {
		go infraPrometheus.Run(ctx, infraPrometheus.NewServer(cfg.Prometheus), log)
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	deps := appserver.Dependencies{
		Logger: log,
		Config: cfg,
		Shares: shares,
		Admin:  admin,
		Checks: checks,
	}
	if redisClient != nil {
		deps.Redis = redisClient
	}
	server := appserver.New(deps)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.App.Addr))
		serveErr <- server.Listen(cfg.App.Addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}
