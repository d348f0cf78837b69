package factory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/boardgame-groups/internal/api/sse"
	"github.com/mcoot/boardgame-groups/internal/bgg"
	"github.com/mcoot/boardgame-groups/internal/consistency"
	"github.com/mcoot/boardgame-groups/internal/dependencies/clock"
	"github.com/mcoot/boardgame-groups/internal/dependencies/idgen"
	"github.com/mcoot/boardgame-groups/internal/mailer"
	"github.com/mcoot/boardgame-groups/internal/services/auth"
	"github.com/mcoot/boardgame-groups/internal/services/catalog"
	"github.com/mcoot/boardgame-groups/internal/services/groups"
	"github.com/mcoot/boardgame-groups/internal/services/plays"
	"github.com/mcoot/boardgame-groups/internal/services/users"
	"github.com/mcoot/boardgame-groups/internal/storage"
	"github.com/mcoot/boardgame-groups/internal/storage/memory"
	mongostorage "github.com/mcoot/boardgame-groups/internal/storage/mongo"
	redisstorage "github.com/mcoot/boardgame-groups/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeMongo  = "mongo"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	IDs    idgen.Generator
	Mailer mailer.Mailer

	// Services
	Coordinator    *consistency.Coordinator
	AuthService    *auth.Service
	UserService    *users.Service
	GroupService   *groups.Service
	CatalogService *catalog.Service
	PlayService    *plays.Service
	HubManager     *sse.HubManager

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service.
	// An empty secret is only allowed with memory storage, where a random
	// one is generated.
	AuthConfig auth.Config
	// UsersConfig holds configuration for the users service (optional)
	UsersConfig users.Config
	// BGGConfig holds configuration for the BoardGameGeek client (optional)
	BGGConfig bgg.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// Mailer sends confirmation emails (optional)
	// If nil, emails are logged
	Mailer mailer.Mailer
	// StorageType selects the storage backend ("memory", "redis" or "mongo")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// MongoConfig holds MongoDB connection settings (required if StorageType is "mongo")
	MongoConfig *mongostorage.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	authCfg := cfg.AuthConfig
	if len(authCfg.Secret) == 0 {
		if storageType != StorageTypeMemory {
			return nil, errors.New("AuthConfig.Secret required for persistent storage")
		}
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		authCfg.Secret = secret
		logger.Warn("no token secret configured; generated an ephemeral one")
	}

	// Create storage based on type
	var (
		store   storage.Storage
		closers []io.Closer
	)
	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	case StorageTypeMongo:
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when StorageType is mongo")
		}
		mongoStore, err := mongostorage.New(ctx, *cfg.MongoConfig)
		if err != nil {
			return nil, err
		}
		store = mongoStore
		closers = append(closers, mongoStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'mongo'")
	}

	usersCfg := cfg.UsersConfig
	if usersCfg.ValidationKeyTTL == 0 {
		usersCfg.ValidationKeyTTL = users.DefaultConfig().ValidationKeyTTL
	}
	if usersCfg.PublicURL == "" {
		usersCfg.PublicURL = users.DefaultConfig().PublicURL
	}

	bggCfg := cfg.BGGConfig
	if bggCfg.BaseURL == "" {
		bggCfg = bgg.DefaultConfig()
	}

	mail := cfg.Mailer
	if mail == nil {
		mail = mailer.NewLogMailer(logger)
	}

	app := newWithDependencies(dependencies{
		store:    store,
		clock:    clock.New(),
		ids:      idgen.New(),
		mailer:   mail,
		external: bgg.New(bggCfg, logger),
		authCfg:  authCfg,
		usersCfg: usersCfg,
		logger:   logger,
	})
	app.closers = closers
	return app, nil
}

// dependencies are the inputs newWithDependencies wires together
type dependencies struct {
	store    storage.Storage
	clock    clock.Clock
	ids      idgen.Generator
	mailer   mailer.Mailer
	external catalog.External
	authCfg  auth.Config
	usersCfg users.Config
	logger   *slog.Logger
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(deps dependencies) *App {
	hubManager := sse.NewHubManager(deps.logger)
	coordinator := consistency.New(deps.store, deps.clock, deps.logger)
	authService := auth.New(deps.store, deps.clock, deps.ids, deps.authCfg)
	userService := users.New(deps.store, authService, coordinator, deps.mailer, hubManager, deps.clock, deps.ids, deps.logger, deps.usersCfg)
	groupService := groups.New(deps.store, coordinator, hubManager, deps.clock, deps.ids, deps.logger)
	catalogService := catalog.New(deps.store, deps.external, deps.clock, deps.ids, deps.logger)
	playService := plays.New(deps.store, groupService, deps.clock, deps.ids, deps.logger)

	return &App{
		Storage:        deps.store,
		Clock:          deps.clock,
		IDs:            deps.ids,
		Mailer:         deps.mailer,
		Coordinator:    coordinator,
		AuthService:    authService,
		UserService:    userService,
		GroupService:   groupService,
		CatalogService: catalogService,
		PlayService:    playService,
		HubManager:     hubManager,
	}
}

// Close shuts down event streams and releases storage connections
func (a *App) Close() error {
	a.HubManager.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
