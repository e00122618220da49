package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streampulse/viewership-service/internal/cache"
	"github.com/streampulse/viewership-service/internal/client"
	"github.com/streampulse/viewership-service/internal/config"
	"github.com/streampulse/viewership-service/internal/domain"
	"github.com/streampulse/viewership-service/internal/handler"
	"github.com/streampulse/viewership-service/internal/publisher"
	"github.com/streampulse/viewership-service/internal/repository"
	"github.com/streampulse/viewership-service/internal/service"
	"github.com/streampulse/viewership-service/internal/store"
	"github.com/streampulse/viewership-service/pkg/database"
	pkglog "github.com/streampulse/viewership-service/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "viewership-service",
	})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting viewership-service")

	// Presence store (TTL key/value on Redis)
	presenceStore, err := store.NewRedisStore(store.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create presence store")
	}
	defer presenceStore.Close()

	// Count cache tiers
	localCache := cache.NewMemoryCountCache()
	sharedCache, err := cache.NewRedisCountCache(cache.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Cache.Prefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create shared count cache")
	}
	defer sharedCache.Close()

	// System of record
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, &domain.StreamModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	streamRepo := repository.NewGormStreamRepository(db)

	// Broadcast publisher; the redis driver reuses the presence Redis
	// unless configured otherwise.
	pubCfg := cfg.Broadcast
	if pubCfg.Driver == "redis" && pubCfg.Redis.Address == "" {
		pubCfg.Redis = publisher.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}
	pub, err := publisher.New(pubCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create broadcast publisher")
	}
	defer pub.Close()

	// Liveness probe client
	livenessClient := client.NewLivenessClient(cfg.Liveness.URL, cfg.Liveness.Timeout)

	// Listener registry
	registry := service.NewListenerRegistry(presenceStore, localCache, sharedCache, streamRepo, pub, service.Config{
		ActiveWindow:  cfg.Presence.ActiveWindow,
		CacheTTL:      cfg.Cache.TTL,
		MaxListeners:  cfg.Presence.MaxListeners,
		ChannelPrefix: cfg.Broadcast.ChannelPrefix,
	})

	// HTTP surface
	httpHandler := handler.NewHandler(registry, streamRepo, livenessClient)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("broadcast_driver", pubCfg.Driver).Msg("viewership-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down viewership-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("viewership-service stopped")
}
