package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/katemorely/tastebase/favorites"
	"github.com/katemorely/tastebase/internal/auth"
	appmw "github.com/katemorely/tastebase/internal/http/middleware"
	"github.com/katemorely/tastebase/internal/jobs"
	"github.com/katemorely/tastebase/spoonacular"
)

const (
	sessionUserID   = "user_id"
	sessionUserName = "user_name"
)

type Server struct {
	Router    *chi.Mux
	Sess      *scs.SessionManager
	Recipes   *spoonacular.Client
	Favorites *favorites.Store
	Local     *auth.Local
	OAuth     *auth.OAuth // nil when the hosted provider is not configured
	Notifier  *auth.Notifier
	Log       zerolog.Logger
	RedisAddr string // empty disables background job enqueueing
}

type ServerOptions struct {
	Sess      *scs.SessionManager
	Recipes   *spoonacular.Client
	Favorites *favorites.Store
	Local     *auth.Local
	OAuth     *auth.OAuth
	Notifier  *auth.Notifier
	Log       zerolog.Logger
	RedisAddr string
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:    r,
		Sess:      opts.Sess,
		Recipes:   opts.Recipes,
		Favorites: opts.Favorites,
		Local:     opts.Local,
		OAuth:     opts.OAuth,
		Notifier:  opts.Notifier,
		Log:       opts.Log,
		RedisAddr: opts.RedisAddr,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			s.Log.Warn().Err(err).Msg("write health check response")
		}
	})

	r.Get("/api/search", s.handleSearch)
	r.Get("/api/search/ingredients", s.handleIngredientSearch)
	r.Get("/api/recipes/random", s.handleRandom)
	r.Get("/api/recipes/{recipeID}", s.handleRecipe)
	r.Get("/api/recipes/{recipeID}/nutrition", s.handleNutrition)
	r.Get("/api/recipes/{recipeID}/equipment", s.handleEquipment)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)
	if s.OAuth != nil {
		r.Get("/auth/oauth/start", s.handleOAuthStart)
		r.Get("/auth/oauth/callback", s.handleOAuthCallback)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(s.sessionToContext)
		pr.Use(appmw.RequireUser)
		pr.Get("/api/favorites", s.handleListFavorites)
		pr.Put("/api/favorites/{recipeID}", s.handleAddFavorite)
		pr.Delete("/api/favorites/{recipeID}", s.handleRemoveFavorite)
	})

	return s
}

// sessionToContext copies the session's user id into the request context
// under the key RequireUser checks.
func (s *Server) sessionToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := s.Sess.GetString(r.Context(), sessionUserID); id != "" {
			r = r.WithContext(context.WithValue(r.Context(), appmw.UserIDKey, id))
		}
		next.ServeHTTP(w, r)
	})
}

// syncIdentity reconciles the favorites store with the session's user
// before a favorites operation runs. Sessions outlive process restarts;
// the in-memory identity does not. Republishing also retries a favorites
// load that failed on a previous sign-in, so a recovered storage backend
// brings the store back to ready.
func (s *Server) syncIdentity(r *http.Request) {
	userID := s.Sess.GetString(r.Context(), sessionUserID)
	cur := s.Notifier.Current()

	if userID == "" {
		if cur != nil {
			s.Notifier.Publish(nil)
		}
		return
	}
	if cur == nil || cur.UserID != userID || s.Favorites.State() != favorites.StateReady {
		s.Notifier.Publish(&auth.Identity{
			UserID:      userID,
			DisplayName: s.Sess.GetString(r.Context(), sessionUserName),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRecipeError maps provider failures onto user-facing status codes
// and messages, mirroring what the UI shows per error kind.
func (s *Server) writeRecipeError(w http.ResponseWriter, err error) {
	var apiErr *spoonacular.APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		msg := "something went wrong, please try again"
		switch apiErr.Kind {
		case spoonacular.KindQuotaExceeded:
			status, msg = http.StatusTooManyRequests, "recipe service quota exceeded, please try again later"
		case spoonacular.KindNotFound:
			status, msg = http.StatusNotFound, "recipe not found"
		case spoonacular.KindServerError:
			msg = "recipe service error, please try again later"
		case spoonacular.KindNetwork:
			msg = "could not reach the recipe service"
		}
		s.Log.Error().Err(err).Str("endpoint", apiErr.Endpoint).Msg("provider request failed")
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	s.Log.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// ---- Recipes

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := spoonacular.SearchOptions{
		Cuisine:      q.Get("cuisine"),
		Diet:         q.Get("diet"),
		Intolerances: q.Get("intolerances"),
		MealType:     q.Get("type"),
	}
	if n, err := strconv.Atoi(q.Get("number")); err == nil {
		opts.Number = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = n
	}
	if n, err := strconv.Atoi(q.Get("maxReadyTime")); err == nil {
		opts.MaxReadyTime = n
	}

	results, err := s.Recipes.SearchByText(r.Context(), q.Get("q"), opts)
	if err != nil {
		s.writeRecipeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleIngredientSearch(w http.ResponseWriter, r *http.Request) {
	list := r.URL.Query().Get("list")
	if strings.TrimSpace(list) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "list parameter required"})
		return
	}

	opts := spoonacular.IngredientOptions{}
	if n, err := strconv.Atoi(r.URL.Query().Get("number")); err == nil {
		opts.Number = n
	}

	results, err := s.Recipes.SearchByIngredients(r.Context(), strings.Split(list, ","), opts)
	if err != nil {
		s.writeRecipeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	opts := spoonacular.RandomOptions{Tags: r.URL.Query().Get("tags")}
	if n, err := strconv.Atoi(r.URL.Query().Get("number")); err == nil {
		opts.Number = n
	}

	results, err := s.Recipes.GetRandom(r.Context(), opts)
	if err != nil {
		s.writeRecipeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) recipeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "recipeID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid recipe id"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recipeID(w, r)
	if !ok {
		return
	}
	detail, err := s.Recipes.GetDetails(r.Context(), id)
	if err != nil {
		s.writeRecipeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleNutrition(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recipeID(w, r)
	if !ok {
		return
	}
	nutrition, err := s.Recipes.GetNutrition(r.Context(), id)
	if err != nil {
		s.writeRecipeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nutrition)
}

func (s *Server) handleEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.recipeID(w, r)
	if !ok {
		return
	}
	equipment, err := s.Recipes.GetEquipment(r.Context(), id)
	if err != nil {
		s.writeRecipeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, equipment)
}

// ---- Auth

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (s *Server) startSession(r *http.Request, ident *auth.Identity) error {
	if err := s.Sess.RenewToken(r.Context()); err != nil {
		return err
	}
	s.Sess.Put(r.Context(), sessionUserID, ident.UserID)
	s.Sess.Put(r.Context(), sessionUserName, ident.DisplayName)
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}

	ident, err := s.Local.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password required"})
		default:
			s.Log.Error().Err(err).Msg("register failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not register"})
		}
		return
	}

	if err := s.startSession(r, ident); err != nil {
		s.Log.Error().Err(err).Msg("start session failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not start session"})
		return
	}
	writeJSON(w, http.StatusCreated, ident)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad request body"})
		return
	}

	ident, err := s.Local.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		s.Log.Error().Err(err).Msg("login failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not log in"})
		return
	}

	if err := s.startSession(r, ident); err != nil {
		s.Log.Error().Err(err).Msg("start session failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not start session"})
		return
	}

	s.enqueuePrefetch(ident.UserID)
	writeJSON(w, http.StatusOK, ident)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Notifier.Publish(nil)
	if err := s.Sess.Destroy(r.Context()); err != nil {
		s.Log.Error().Err(err).Msg("destroy session failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not log out"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	returnTo := r.URL.Query().Get("return_to")
	if returnTo == "" {
		returnTo = "/"
	}
	http.Redirect(w, r, s.OAuth.AuthCodeURL(returnTo, 30*time.Minute), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ident, returnTo, err := s.OAuth.HandleCallback(r.Context(), r.URL.Query().Get("code"), r.URL.Query().Get("state"))
	if err != nil {
		s.Log.Error().Err(err).Msg("oauth callback failed")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in failed"})
		return
	}

	if err := s.startSession(r, ident); err != nil {
		s.Log.Error().Err(err).Msg("start session failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not start session"})
		return
	}

	s.enqueuePrefetch(ident.UserID)
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// ---- Favorites

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	s.syncIdentity(r)
	writeJSON(w, http.StatusOK, map[string]any{"favorites": s.Favorites.List()})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	s.syncIdentity(r)
	id := favorites.CanonicalID(chi.URLParam(r, "recipeID"))
	if err := s.Favorites.Add(r.Context(), id); err != nil {
		if errors.Is(err, favorites.ErrNotLoaded) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "favorites are unavailable, please try again"})
			return
		}
		s.Log.Error().Err(err).Str("recipe_id", string(id)).Msg("add favorite failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save favorite"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": s.Favorites.List()})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.syncIdentity(r)
	id := favorites.CanonicalID(chi.URLParam(r, "recipeID"))
	if err := s.Favorites.Remove(r.Context(), id); err != nil {
		if errors.Is(err, favorites.ErrNotLoaded) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "favorites are unavailable, please try again"})
			return
		}
		s.Log.Error().Err(err).Str("recipe_id", string(id)).Msg("remove favorite failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not remove favorite"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": s.Favorites.List()})
}

// ---- Background jobs

// enqueuePrefetch queues a cache-warming job for the user's favorites.
// Best effort: a missing queue never blocks sign-in.
func (s *Server) enqueuePrefetch(userID string) {
	if s.RedisAddr == "" {
		return
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: s.RedisAddr})
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			s.Log.Warn().Err(closeErr).Msg("close asynq client")
		}
	}()

	payload, _ := json.Marshal(jobs.PrefetchFavoritesPayload{UserID: userID})
	task := asynq.NewTask(jobs.TaskPrefetchFavorites, payload)

	info, err := client.Enqueue(task,
		asynq.Queue("prefetch"),
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	)
	if err != nil {
		s.Log.Warn().Err(err).Str("user_id", userID).Msg("enqueue favorites prefetch")
		return
	}
	s.Log.Info().Str("task_id", info.ID).Str("user_id", userID).Msg("favorites prefetch queued")
}
