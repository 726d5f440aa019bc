package main

import (
	"alcyxob/coaching-platform/internal/api"
	"alcyxob/coaching-platform/internal/cache"
	"alcyxob/coaching-platform/internal/config"
	"alcyxob/coaching-platform/internal/logger"
	"alcyxob/coaching-platform/internal/repository"
	"alcyxob/coaching-platform/internal/repository/memory"
	"alcyxob/coaching-platform/internal/repository/mongo"
	"alcyxob/coaching-platform/internal/service"
	"alcyxob/coaching-platform/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// @title Coaching Platform API
// @version 1.0
// @description Client calendars, plan scheduling and copy-on-write personalization of coaching content.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	appLog, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("starting coaching platform server", "address", cfg.Server.Address, "driver", cfg.Database.Driver)

	if cfg.JWT.Secret == "" {
		appLog.Fatal("jwt.secret is required")
	}
	loc, err := cfg.Calendar.Location()
	if err != nil {
		appLog.Fatal("invalid calendar timezone", "timezone", cfg.Calendar.Timezone, "error", err)
	}

	// --- Store ---
	store, closeStore, err := openStore(cfg.Database, appLog)
	if err != nil {
		appLog.Fatal("could not open store", "error", err)
	}
	defer closeStore()

	// --- Week cache ---
	var weekCache cache.WeekCache = cache.Noop{}
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisWeekCache(appLog, cfg.Cache.RedisAddr, cfg.Cache.Prefix, cfg.Cache.TTL)
		if err != nil {
			appLog.Fatal("could not connect week cache", "addr", cfg.Cache.RedisAddr, "error", err)
		}
		defer redisCache.Close()
		weekCache = redisCache
	}

	// --- Copy archive ---
	var archiver storage.CopyArchiver = storage.NoopArchiver{}
	var fileStorage storage.FileStorage
	if cfg.S3.BucketName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		fileStorage, err = storage.NewS3Storage(ctx, appLog, cfg.S3)
		cancel()
		if err != nil {
			appLog.Fatal("failed to initialize S3 storage", "error", err)
		}
		archiver = storage.NewCopyArchiver(fileStorage)
	} else {
		appLog.Warn("s3.bucket_name is empty; personalized copies are deleted without an archive")
	}

	// --- Services ---
	resolver := service.NewContentResolver(appLog, store, weekCache)
	personalization := service.NewPersonalizationService(appLog, store, weekCache, archiver)
	scheduler := service.NewSchedulerService(appLog, store, weekCache, archiver, personalization)
	propagation := service.NewPropagationService(appLog, store, weekCache, archiver)

	// --- Router ---
	if cfg.Log.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, appLog, cfg.JWT.Secret, loc, resolver, personalization, scheduler, propagation, fileStorage)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		appLog.Info("server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("ListenAndServe error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		appLog.Error("server forced to shutdown", "error", err)
	}
	appLog.Info("server exiting")
}

// openStore returns the configured repositories and a function releasing them.
func openStore(cfg config.DatabaseConfig, appLog *logger.Logger) (*repository.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		appLog.Warn("using in-memory store; data is lost on restart")
		return memory.NewStore(memory.Options{ProvenanceIndexes: cfg.ProvenanceIndexes}), func() {}, nil
	case "mongo", "":
		client, err := mongo.ConnectDB(cfg.URI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.Name)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, db, cfg.ProvenanceIndexes); err != nil {
			// Lookups still work; provenance queries fall back to scans.
			appLog.Warn("index creation failed", "error", err)
		}
		appLog.Info("database connection established", "database", cfg.Name, "provenanceIndexes", cfg.ProvenanceIndexes)

		closeFn := func() {
			if err := mongo.DisconnectDB(client); err != nil {
				appLog.Error("failed to disconnect MongoDB", "error", err)
			}
		}
		return mongo.NewStore(db), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
