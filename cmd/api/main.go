package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fortunto2/super-turbo-sub006/internal/balance"
	"github.com/fortunto2/super-turbo-sub006/internal/chat"
	"github.com/fortunto2/super-turbo-sub006/internal/http/handlers"
	"github.com/fortunto2/super-turbo-sub006/internal/http/httpapi"
	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/infra/credentials"
	"github.com/fortunto2/super-turbo-sub006/internal/infra/geoip"
	"github.com/fortunto2/super-turbo-sub006/internal/middleware"
	"github.com/fortunto2/super-turbo-sub006/internal/storage"
	"github.com/fortunto2/super-turbo-sub006/internal/superduper"
	"github.com/fortunto2/super-turbo-sub006/internal/track"
	"github.com/fortunto2/super-turbo-sub006/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	var table chat.SideTable
	if rdb, err := infra.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, request-id lookups fall back to transcript scans")
		table = chat.NewMemorySideTable()
	} else {
		defer rdb.Close()
		table = chat.NewRedisSideTable(rdb, cfg.SideTableTTL)
	}

	// Provider token: env first, DB-backed credentials store as fallback.
	token := cfg.SuperDuperToken
	if token == "" {
		creds := credentials.NewStore(runner)
		if stored, err := creds.SuperDuperToken(ctx); err == nil {
			token = stored
		}
	}
	provider, err := superduper.NewClient(superduper.Options{
		Token:          token,
		BaseURL:        cfg.SuperDuperBaseURL,
		Logger:         &logger,
		RequestTimeout: cfg.ProviderHTTPTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("provider client init failed")
	}

	repo := chat.NewRepo(runner, logger)
	patcher := chat.NewPatcher(repo, table, logger)
	balances := balance.NewService(runner, logger)

	images := track.NewStore(&transport.WSDialer{
		BaseURL:       cfg.SuperDuperWSURL,
		Token:         token,
		MaxReconnects: cfg.StreamMaxReconnects,
		Logger:        logger,
	}, logger, cfg.HandlerLeakThreshold)
	videos := track.NewStore(&transport.SSEDialer{
		BaseURL:       cfg.SuperDuperBaseURL,
		Token:         token,
		MaxReconnects: cfg.StreamMaxReconnects,
		Logger:        logger,
	}, logger, cfg.HandlerLeakThreshold)

	manager := track.NewManager(images, videos, provider, patcher, balances, track.PollConfig{
		Delay:       cfg.TrackPollDelay,
		Interval:    cfg.TrackPollInterval,
		MaxAttempts: cfg.TrackPollMaxAttempts,
		WallClock:   cfg.TrackPollWallClock,
	}, logger)
	defer manager.Shutdown()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage init failed")
	}

	var countryLookup middleware.CountryLookup
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip database unavailable")
		} else {
			defer resolver.Close()
			countryLookup = resolver.CountryCode
		}
	}

	app := &handlers.App{
		SQL:      runner,
		Config:   cfg,
		Logger:   logger,
		Tracker:  manager,
		Balance:  balances,
		Messages: repo,
		Files:    files,
		Fetch:    &http.Client{Timeout: cfg.ProviderHTTPTimeout},
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, countryLookup))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
