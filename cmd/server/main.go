package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/boardgame-groups/internal/api"
	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/config"
	"github.com/mcoot/boardgame-groups/internal/factory"
	"github.com/mcoot/boardgame-groups/internal/services/auth"
	"github.com/mcoot/boardgame-groups/internal/services/users"
	mongostorage "github.com/mcoot/boardgame-groups/internal/storage/mongo"
	redisstorage "github.com/mcoot/boardgame-groups/internal/storage/redis"
)

const hubJanitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build factory config from environment
	authCfg := auth.DefaultConfig()
	authCfg.Secret = []byte(cfg.JWTSecret)
	authCfg.TokenTTL = cfg.TokenTTL
	authCfg.RequireConfirmed = cfg.RequireConfirmedEmail

	bggCfg := bgg.DefaultConfig()
	bggCfg.BaseURL = cfg.BGGBaseURL
	bggCfg.Timeout = cfg.BGGTimeout
	bggCfg.MaxRetries = cfg.BGGMaxRetries
	bggCfg.RateLimit = cfg.BGGRateLimit

	factoryCfg := factory.Config{
		AuthConfig: authCfg,
		UsersConfig: users.Config{
			ValidationKeyTTL: cfg.ValidationKeyTTL,
			PublicURL:        cfg.PublicURL,
		},
		BGGConfig:   bggCfg,
		Logger:      logger,
		StorageType: cfg.StorageType,
	}

	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case factory.StorageTypeMongo:
		mongoCfg := mongostorage.DefaultConfig()
		mongoCfg.URI = cfg.MongoURI
		mongoCfg.Database = cfg.MongoDatabase
		factoryCfg.MongoConfig = &mongoCfg
	}

	// Create application factory
	app, err := factory.New(ctx, factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close error", slog.String("error", err.Error()))
		}
	}()

	go app.HubManager.RunJanitor(ctx, hubJanitorInterval)

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		UserService:    app.UserService,
		GroupService:   app.GroupService,
		CatalogService: app.CatalogService,
		PlayService:    app.PlayService,
		HubManager:     app.HubManager,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType),
	)

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			cancel()
			return
		}
	case <-ctx.Done():
		// Open event streams end when their hubs close
		app.HubManager.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}
