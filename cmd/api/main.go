package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/settings"
	"server/internal/providers/image"
	"server/internal/storage"
	"server/internal/timemachine"
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

	if err := infra.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, settings cache disabled")
			redisClient = nil
		}
	}

	settingsStore := settings.New(dbpool, redisClient, cfg.SettingsCacheTTL, map[string]string{
		settings.KeyGeminiGenAPIKey:  cfg.GeminiGenAPIKey,
		settings.KeyKieAPIKey:        cfg.KieAPIKey,
		settings.KeyKieWebhookSecret: cfg.KieWebhookSecret,
		settings.KeyProvider:         cfg.Provider,
		settings.KeyDefaultMode:      cfg.DefaultMode,
	})

	uploads, err := storage.NewUploadStore(cfg.UploadPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure upload storage")
	}

	adapters := map[string]image.Adapter{}
	geminigen := image.NewGeminiGen(image.GeminiGenOptions{
		BaseURL:       cfg.GeminiGenBaseURL,
		Credentials:   settingsStore,
		CredentialKey: settings.KeyGeminiGenAPIKey,
		SubmitTimeout: cfg.SubmitTimeout,
		PollTimeout:   cfg.PollTimeout,
	})
	adapters[geminigen.Name()] = geminigen
	kie := image.NewKie(image.KieOptions{
		BaseURL:       cfg.KieBaseURL,
		UploadURL:     cfg.KieUploadURL,
		CallbackURL:   cfg.PublicBaseURL + "/webhooks/kie",
		Credentials:   settingsStore,
		CredentialKey: settings.KeyKieAPIKey,
		SubmitTimeout: cfg.SubmitTimeout,
	})
	adapters[kie.Name()] = kie

	photos := repo.NewPhotoRepository(dbpool)
	ledger := repo.NewLedgerRepository(dbpool)
	svc := timemachine.NewService(photos, ledger, adapters, settingsStore, cfg.PhotoCost, logger)

	app := handlers.NewApp(svc, uploads, cfg, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

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
