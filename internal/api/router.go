package api

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/boardgame-groups/internal/api/apierr"
	"github.com/mcoot/boardgame-groups/internal/api/handler"
	"github.com/mcoot/boardgame-groups/internal/api/middleware"
	"github.com/mcoot/boardgame-groups/internal/api/response"
	"github.com/mcoot/boardgame-groups/internal/api/sse"
	"github.com/mcoot/boardgame-groups/internal/services/auth"
	"github.com/mcoot/boardgame-groups/internal/services/catalog"
	"github.com/mcoot/boardgame-groups/internal/services/groups"
	"github.com/mcoot/boardgame-groups/internal/services/plays"
	"github.com/mcoot/boardgame-groups/internal/services/users"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	UserService    *users.Service
	GroupService   *groups.Service
	CatalogService *catalog.Service
	PlayService    *plays.Service
	HubManager     *sse.HubManager

	// AllowedOrigins enables CORS for the listed origins. Empty disables it.
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	userHandler := handler.NewUserHandler(cfg.UserService, cfg.GroupService, cfg.PlayService)
	groupHandler := handler.NewGroupHandler(cfg.GroupService, cfg.PlayService, cfg.HubManager)
	catalogHandler := handler.NewCatalogHandler(cfg.CatalogService)
	playHandler := handler.NewPlayHandler(cfg.PlayService)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuthMiddleware := middleware.OptionalAuth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	protected := func(h http.HandlerFunc) http.Handler { return authMiddleware(h) }

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// User routes. The /me routes come first so "me" is never resolved as a username.
	api.HandleFunc("/users", userHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/users", userHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/users/login", userHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/users/confirm/{token}", userHandler.Confirm).Methods(http.MethodGet)
	api.HandleFunc("/users/resend/{username}", userHandler.Resend).Methods(http.MethodPost)
	api.Handle("/users", protected(userHandler.Update)).Methods(http.MethodPatch, http.MethodPut)
	api.Handle("/users", protected(userHandler.Delete)).Methods(http.MethodDelete)
	api.Handle("/users/me", protected(userHandler.GetMe)).Methods(http.MethodGet)
	api.Handle("/users/me", protected(userHandler.Update)).Methods(http.MethodPatch, http.MethodPut)
	api.Handle("/users/me", protected(userHandler.Delete)).Methods(http.MethodDelete)
	api.Handle("/users/me/groups", protected(userHandler.Groups)).Methods(http.MethodGet)
	api.Handle("/users/{ident}", optionalAuthMiddleware(http.HandlerFunc(userHandler.Get))).Methods(http.MethodGet)
	api.HandleFunc("/users/{ident}/plays", userHandler.Plays).Methods(http.MethodGet)

	// Group routes (all require auth)
	groupRoutes := api.PathPrefix("/groups").Subrouter()
	groupRoutes.Use(authMiddleware)
	groupRoutes.HandleFunc("", groupHandler.Create).Methods(http.MethodPost)
	groupRoutes.HandleFunc("/{identifier}", groupHandler.Get).Methods(http.MethodGet)
	groupRoutes.HandleFunc("/{identifier}", groupHandler.Update).Methods(http.MethodPatch, http.MethodPut)
	groupRoutes.HandleFunc("/{identifier}", groupHandler.Delete).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/members", groupHandler.AddMember).Methods(http.MethodPost)
	groupRoutes.HandleFunc("/{identifier}/members", groupHandler.RemoveMember).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/members/{username}", groupHandler.RemoveMember).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/owners", groupHandler.AddOwner).Methods(http.MethodPost)
	groupRoutes.HandleFunc("/{identifier}/owners", groupHandler.RemoveOwner).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/owners/{username}", groupHandler.RemoveOwner).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/games", groupHandler.AddGame).Methods(http.MethodPost)
	groupRoutes.HandleFunc("/{identifier}/games", groupHandler.RemoveGame).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/games/{name}", groupHandler.RemoveGame).Methods(http.MethodDelete)
	groupRoutes.HandleFunc("/{identifier}/plays", groupHandler.Plays).Methods(http.MethodGet)
	groupRoutes.HandleFunc("/{identifier}/stats", groupHandler.Stats).Methods(http.MethodGet)
	groupRoutes.HandleFunc("/{identifier}/events", groupHandler.Events).Methods(http.MethodGet)

	// Catalog routes (reads are public)
	api.HandleFunc("/games", catalogHandler.List).Methods(http.MethodGet)
	api.Handle("/games", protected(catalogHandler.Create)).Methods(http.MethodPost)
	api.HandleFunc("/games/search/{name}", catalogHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/games/{ident}", catalogHandler.Get).Methods(http.MethodGet)
	api.Handle("/games/{ident}", protected(catalogHandler.Delete)).Methods(http.MethodDelete)

	// BoardGameGeek routes
	api.HandleFunc("/bgg/games/{name}", catalogHandler.FetchExternal).Methods(http.MethodGet)
	api.HandleFunc("/bgg/search/{name}", catalogHandler.SearchExternal).Methods(http.MethodGet)
	api.Handle("/bgg/import", protected(catalogHandler.Import)).Methods(http.MethodPost)

	// Play routes (all require auth)
	playRoutes := api.PathPrefix("/plays").Subrouter()
	playRoutes.Use(authMiddleware)
	playRoutes.HandleFunc("", playHandler.Record).Methods(http.MethodPost)
	playRoutes.HandleFunc("/{groupIdent}", playHandler.ListForGroup).Methods(http.MethodGet)
	playRoutes.HandleFunc("/{playId}", playHandler.Delete).Methods(http.MethodDelete)

	// Unmatched requests get the same JSON error envelope as handler failures
	r.NotFoundHandler = loggingMiddleware(http.HandlerFunc(routeNotFound))
	r.MethodNotAllowedHandler = loggingMiddleware(http.HandlerFunc(methodNotAllowed))

	if len(cfg.AllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		// browsers refuse credentials alongside a wildcard origin
		AllowCredentials: !slices.Contains(cfg.AllowedOrigins, "*"),
	}).Handler(r)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewRouteNotFoundError(r.URL.Path))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewMethodNotAllowedError(r.Method))
}
