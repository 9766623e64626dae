// Package main is the SpotifyScope backend entry point. It wires the cache,
// database, provider client, and analytics services, registers the HTTP
// routes with the middleware stack, and runs the server with graceful
// shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/analytics"
	"github.com/Luuchoh/SpotifyScope/internal/auth"
	"github.com/Luuchoh/SpotifyScope/internal/cache"
	"github.com/Luuchoh/SpotifyScope/internal/config"
	"github.com/Luuchoh/SpotifyScope/internal/database/postgres"
	"github.com/Luuchoh/SpotifyScope/internal/handlers"
	"github.com/Luuchoh/SpotifyScope/internal/middleware"
	"github.com/Luuchoh/SpotifyScope/internal/repository"
	"github.com/Luuchoh/SpotifyScope/internal/spotify"
	"github.com/Luuchoh/SpotifyScope/internal/startup"
	"github.com/Luuchoh/SpotifyScope/internal/token"
	"github.com/Luuchoh/SpotifyScope/pkg/logger"
)

func main() {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env.local file: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info("Starting SpotifyScope backend")
	log.WithFields(logrus.Fields{
		"port": cfg.Server.Port,
		"host": cfg.Server.Host,
		"tls":  cfg.IsTLSEnabled(),
	}).Info("Service configuration loaded")

	store, redisClient := initializeStore(cfg, log)
	defer closeStore(store, log)

	dbMgr, err := postgres.NewManager(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize database manager")
		dbMgr = nil
	}
	defer closeDatabase(dbMgr, log)

	if dbMgr != nil && cfg.IsDatabaseConfigured() {
		maintenanceCtx, cancelMaintenance := context.WithCancel(context.Background())
		defer cancelMaintenance()

		maintenance := startup.NewMaintenanceService(repository.NewPostgresSnapshotRepository(dbMgr.Pool), log)
		go maintenance.Run(maintenanceCtx)
	}

	server := setupServer(cfg, store, redisClient, dbMgr, log)

	runServer(server, cfg, log)
}

// initializeStore connects to Redis and falls back to the in-memory store
// when Redis is unreachable. The raw Redis client is returned separately
// for the rate limiter.
func initializeStore(cfg *config.Config, log *logrus.Logger) (cache.Store, *redis.Client) {
	redisStore, err := cache.NewRedisStore(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, falling back to in-memory cache")
		log.Warn("Note: in-memory cache will not persist sessions between restarts")
		return cache.NewMemoryStore(log), nil
	}

	log.Info("Successfully connected to Redis")
	return redisStore, redisStore.Client()
}

func closeStore(store cache.Store, log *logrus.Logger) {
	if err := store.Close(); err != nil {
		log.WithError(err).Error("Failed to close cache store")
	}
}

func closeDatabase(dbMgr *postgres.Manager, log *logrus.Logger) {
	if dbMgr != nil {
		dbMgr.Close()
		log.Info("Database connections closed")
	}
}

func setupServer(
	cfg *config.Config,
	store cache.Store,
	redisClient *redis.Client,
	dbMgr *postgres.Manager,
	log *logrus.Logger,
) *http.Server {
	facade := cache.NewFacade(store, log)

	poolGetter := repository.PoolGetter(func() *pgxpool.Pool { return nil })
	if dbMgr != nil {
		poolGetter = dbMgr.Pool
	}
	userRepo := repository.NewPostgresUserRepository(poolGetter)
	snapshotRepo := repository.NewPostgresSnapshotRepository(poolGetter)

	tokenManager := spotify.NewTokenManager(&cfg.Spotify, spotify.Endpoint.TokenURL, log)
	providerClient := spotify.NewClient(spotify.APIBaseURL, &cfg.Spotify, tokenManager, facade, log)
	authenticator := spotify.NewAuthenticator(&cfg.Spotify, spotify.Endpoint)

	jwtService := token.NewJWTService(&cfg.JWT)
	authService := auth.NewService(&cfg.Spotify, &cfg.JWT, authenticator, providerClient, userRepo, facade, jwtService, log)
	analyticsService := analytics.NewService(providerClient, facade, snapshotRepo, log)

	authHandler := handlers.NewAuthHandler(authService, cfg, log)
	musicHandler := handlers.NewMusicHandler(providerClient, analyticsService, authService, cfg, log)
	healthHandler := handlers.NewHealthHandler(cfg, store, dbMgr, log)

	stack := middleware.NewStack(cfg, facade, jwtService, redisClient, log)

	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", healthHandler.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", healthHandler.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(stack.Metrics)

	api.HandleFunc("/auth/spotify/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/spotify/callback", authHandler.Callback).Methods(http.MethodGet)

	authed := api.PathPrefix("").Subrouter()
	authed.Use(stack.Authenticate)
	authed.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	authed.HandleFunc("/auth/profile", authHandler.Profile).Methods(http.MethodGet)
	authed.HandleFunc("/auth/refresh", authHandler.Refresh).Methods(http.MethodPost)

	api.HandleFunc("/music/search/tracks", musicHandler.SearchTracks).Methods(http.MethodGet)
	api.HandleFunc("/music/search/artists", musicHandler.SearchArtists).Methods(http.MethodGet)
	api.HandleFunc("/music/track/{id}", musicHandler.Track).Methods(http.MethodGet)
	api.HandleFunc("/music/track/{id}/analysis", musicHandler.TrackAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/music/artist/{id}", musicHandler.Artist).Methods(http.MethodGet)
	api.HandleFunc("/music/artist/{id}/analysis", musicHandler.ArtistAnalysis).Methods(http.MethodGet)

	authed.HandleFunc("/music/user/top-tracks", musicHandler.UserTopTracks).Methods(http.MethodGet)
	authed.HandleFunc("/music/user/top-artists", musicHandler.UserTopArtists).Methods(http.MethodGet)
	authed.HandleFunc("/music/user/analytics", musicHandler.UserAnalytics).Methods(http.MethodGet)
	authed.HandleFunc("/music/user/analytics/history", musicHandler.UserAnalyticsHistory).Methods(http.MethodGet)
	authed.HandleFunc("/music/user/recently-played", musicHandler.UserRecentlyPlayed).Methods(http.MethodGet)
	authed.HandleFunc("/music/user/recommendations", musicHandler.UserRecommendations).Methods(http.MethodGet)
	authed.HandleFunc("/music/user/playlists", musicHandler.UserPlaylists).Methods(http.MethodGet)

	finalHandler := stack.Chain(
		router,
		stack.Recovery,
		stack.RequestLogger,
		stack.SecurityHeaders,
		stack.CORS,
		stack.RateLimit,
	)

	return &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func runServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	go startServer(server, cfg, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	} else {
		log.Info("Server exited gracefully")
	}
}

func startServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	log.WithFields(logrus.Fields{
		"addr": server.Addr,
		"tls":  cfg.IsTLSEnabled(),
	}).Info("Starting HTTP server")

	var err error
	if cfg.IsTLSEnabled() {
		err = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Failed to start server")
	}
}
