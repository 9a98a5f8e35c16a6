package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/katemorely/tastebase/cache"
	"github.com/katemorely/tastebase/internal/config"
	"github.com/katemorely/tastebase/internal/jobs"
	"github.com/katemorely/tastebase/internal/storage"
	"github.com/katemorely/tastebase/spoonacular"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR is required for the worker")
	}

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgres(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pg.Close()
		store = pg
	} else {
		r := storage.NewRedis(cfg.RedisAddr)
		defer func() {
			if err := r.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis")
			}
		}()
		store = r
	}

	// The cache must be the Redis one shared with the api process;
	// warming a private in-process cache would have no effect.
	clientOpts := []spoonacular.Option{
		spoonacular.WithCache(cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL), cfg.CacheTTL),
		spoonacular.WithHTTPClient(&http.Client{Timeout: 20 * time.Second}),
	}
	if cfg.SpoonacularBaseURL != "" {
		clientOpts = append(clientOpts, spoonacular.WithBaseURL(cfg.SpoonacularBaseURL))
	}
	recipes, err := spoonacular.New(cfg.SpoonacularAPIKey, clientOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("create recipe client")
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    4,
		StrictPriority: false,
		Queues: map[string]int{
			"prefetch": 10,
			"default":  5,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskPrefetchFavorites, &jobs.PrefetchHandler{
		Client: recipes,
		Store:  store,
		Log:    logger,
	})

	logger.Info().Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker exited")
	}
}
