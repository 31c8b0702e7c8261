package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/FOCUS1407/gestion-immobiliere/config"
	"github.com/FOCUS1407/gestion-immobiliere/internal/auth"
	"github.com/FOCUS1407/gestion-immobiliere/internal/cache"
	"github.com/FOCUS1407/gestion-immobiliere/internal/database"
	"github.com/FOCUS1407/gestion-immobiliere/internal/geocoding"
	"github.com/FOCUS1407/gestion-immobiliere/internal/processor"
	"github.com/FOCUS1407/gestion-immobiliere/internal/queue"
	"github.com/FOCUS1407/gestion-immobiliere/internal/services"
	"github.com/FOCUS1407/gestion-immobiliere/internal/storage"
	"github.com/FOCUS1407/gestion-immobiliere/internal/telegram"
)

// app holds the infrastructure shared by every command.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	db       *gorm.DB
	tokens   *auth.TokenManager
	queue    *queue.NotificationQueue
	redis    *cache.RedisCache
	services *services.Services
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(cfg.Log.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithError(err).Warn("Invalid LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// openDatabase loads configuration, connects and migrates the schema.
func openDatabase() (*config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg)

	if cfg.CatalogPath != "" {
		if err := config.LoadCatalog(cfg.CatalogPath); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.WithField("path", cfg.CatalogPath).Info("Loaded reference data catalog")
	}

	logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database")
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("Running database migrations...")
	if err := database.RunMigrations(db); err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func newApp() (*app, error) {
	cfg, logger, db, err := openDatabase()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.TokenTTL()),
	}

	files, err := storage.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes, cfg.Uploads.ProfilePhotoSize, logger)
	if err != nil {
		return nil, err
	}

	var reportCache cache.Cache = cache.NewMemoryCache()
	if cfg.Cache.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisDB, "immo")
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-process report cache")
			_ = rc.Close()
		} else {
			logger.WithField("addr", cfg.Cache.RedisAddr).Info("Using Redis report cache")
			a.redis = rc
			reportCache = rc
		}
	}

	a.queue = queue.NewNotificationQueue(cfg.Notifications.QueueSize, logger)
	if tg := telegram.NewService(cfg, db, logger); tg.Enabled() {
		a.queue.Subscribe(tg.HandleBatch)
		logger.Info("Telegram delivery enabled")
	}
	a.queue.Start()

	deps := services.Dependencies{
		DB:     db,
		Config: cfg,
		Tokens: a.tokens,
		Files:  files,
		Cache:  reportCache,
		Sink:   processor.NewNotificationProcessor(db, a.queue, cfg, logger),
		Logger: logger,
	}
	if cfg.Geocoding.Enabled {
		deps.Geocoder = geocoding.NewGeocoder(logger, cfg.Geocoding.URL, cfg.Geocoding.CacheDir, cfg.Geocoding.Country)
	}
	a.services = services.NewServices(deps)
	return a, nil
}

// Close drains pending notifications and releases connections.
func (a *app) Close() {
	if err := a.queue.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close notification queue")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close Redis client")
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
