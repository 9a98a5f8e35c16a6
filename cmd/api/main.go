package main

import (
	"context"
	"net/http"
	"os"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/katemorely/tastebase/cache"
	"github.com/katemorely/tastebase/favorites"
	"github.com/katemorely/tastebase/internal/auth"
	"github.com/katemorely/tastebase/internal/config"
	"github.com/katemorely/tastebase/internal/http/routes"
	"github.com/katemorely/tastebase/internal/storage"
	"github.com/katemorely/tastebase/spoonacular"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	// Persistence
	var store storage.Store
	switch {
	case cfg.DatabaseURL != "":
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pg.Close()
		store = pg
	case cfg.RedisAddr != "":
		r := storage.NewRedis(cfg.RedisAddr)
		defer func() {
			if err := r.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis")
			}
		}()
		store = r
	default:
		logger.Warn().Msg("no DATABASE_URL or REDIS_ADDR set, favorites will not survive restarts")
		store = storage.NewMemory()
	}

	// Provider client. With Redis configured the cache is shared with the
	// worker, so prefetched entries serve api traffic.
	var recipeCache cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		recipeCache = cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
	}
	clientOpts := []spoonacular.Option{
		spoonacular.WithCache(recipeCache, cfg.CacheTTL),
		spoonacular.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	}
	if cfg.SpoonacularBaseURL != "" {
		clientOpts = append(clientOpts, spoonacular.WithBaseURL(cfg.SpoonacularBaseURL))
	}
	recipes, err := spoonacular.New(cfg.SpoonacularAPIKey, clientOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("create recipe client")
	}

	// Identity + favorites
	notifier := auth.NewNotifier()
	favStore := favorites.NewStore(store, logger)
	notifier.Subscribe(func(ident *auth.Identity) {
		var fid *favorites.Identity
		if ident != nil {
			fid = &favorites.Identity{UserID: ident.UserID, DisplayName: ident.DisplayName}
		}
		if err := favStore.SetIdentity(context.Background(), fid); err != nil {
			logger.Error().Err(err).Msg("sync favorites with identity")
		}
	})

	local := auth.NewLocal(store, []byte(cfg.SessionSecret), notifier)
	var hosted *auth.OAuth
	if cfg.HasOAuth() {
		hosted = auth.NewOAuth(auth.OAuthConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
			RedirectURL:  cfg.BaseURL + "/auth/oauth/callback",
			StateSecret:  cfg.SessionSecret,
		}, notifier)
	}

	// Sessions
	sess := scs.New()
	sess.Lifetime = 12 * time.Hour
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = false

	// Router / server
	s := routes.New(routes.ServerOptions{
		Sess:      sess,
		Recipes:   recipes,
		Favorites: favStore,
		Local:     local,
		OAuth:     hosted,
		Notifier:  notifier,
		Log:       logger,
		RedisAddr: cfg.RedisAddr,
	})
	h := hlog.NewHandler(logger)(s.Router)

	logger.Info().Str("port", cfg.Port).Msg("starting tastebase api")
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: sess.LoadAndSave(h)}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
