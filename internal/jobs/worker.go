// Package jobs defines background task types and their worker handlers
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/katemorely/tastebase/favorites"
	"github.com/katemorely/tastebase/internal/storage"
	"github.com/katemorely/tastebase/spoonacular"
)

// PrefetchHandler warms the recipe-detail cache for a user's persisted
// favorites so their saved recipes render without provider round-trips.
type PrefetchHandler struct {
	Client *spoonacular.Client
	Store  storage.Store
	Log    zerolog.Logger
}

// ProcessTask implements asynq.Handler
func (h *PrefetchHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p PrefetchFavoritesPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	data, ok, err := h.Store.Get(ctx, favorites.StorageKey(p.UserID))
	if err != nil {
		return fmt.Errorf("load favorites for %s: %w", p.UserID, err)
	}
	if !ok {
		return nil
	}

	ids, err := favorites.DecodeIDs(data)
	if err != nil {
		h.Log.Warn().Err(err).Str("user_id", p.UserID).Msg("skipping unreadable favorites payload")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		n, numeric := id.Int64()
		if !numeric {
			// only numeric ids exist at the provider
			continue
		}
		if _, err := h.Client.GetDetails(ctx, n); err != nil {
			h.Log.Warn().Err(err).Int64("recipe_id", n).Msg("prefetch failed")
			continue
		}
		warmed++
	}

	h.Log.Info().Str("user_id", p.UserID).Int("warmed", warmed).Msg("favorites prefetch done")
	return nil
}
