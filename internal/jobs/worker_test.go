package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/katemorely/tastebase/cache"
	"github.com/katemorely/tastebase/favorites"
	"github.com/katemorely/tastebase/internal/storage"
	"github.com/katemorely/tastebase/spoonacular"
)

func newPrefetchFixture(t *testing.T) (*PrefetchHandler, *storage.Memory, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var id int64
		if _, err := fmt.Sscanf(r.URL.Path, "/recipes/%d/information", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "title": fmt.Sprintf("Recipe %d", id)})
	}))
	t.Cleanup(provider.Close)

	client, err := spoonacular.New("test-key",
		spoonacular.WithBaseURL(provider.URL),
		spoonacular.WithCache(cache.NewMemory(), spoonacular.DefaultTTL),
	)
	require.NoError(t, err)

	store := storage.NewMemory()
	return &PrefetchHandler{Client: client, Store: store, Log: zerolog.Nop()}, store, &hits
}

func prefetchTask(t *testing.T, userID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PrefetchFavoritesPayload{UserID: userID})
	require.NoError(t, err)
	return asynq.NewTask(TaskPrefetchFavorites, payload)
}

func TestPrefetchHandler_WarmsCache(t *testing.T) {
	h, store, hits := newPrefetchFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, favorites.StorageKey("u1"), []byte(`[3, "5", "not-numeric"]`)))

	require.NoError(t, h.ProcessTask(ctx, prefetchTask(t, "u1")))
	require.EqualValues(t, 2, hits.Load(), "only numeric ids are fetched")

	// the warmed entries serve later lookups from cache
	_, err := h.Client.GetDetails(ctx, 3)
	require.NoError(t, err)
	_, err = h.Client.GetDetails(ctx, 5)
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestPrefetchHandler_NoFavorites(t *testing.T) {
	h, _, hits := newPrefetchFixture(t)

	require.NoError(t, h.ProcessTask(context.Background(), prefetchTask(t, "nobody")))
	require.Zero(t, hits.Load())
}

func TestPrefetchHandler_UnreadablePayloadSkipped(t *testing.T) {
	h, store, hits := newPrefetchFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, favorites.StorageKey("u1"), []byte(`not json`)))
	require.NoError(t, h.ProcessTask(ctx, prefetchTask(t, "u1")))
	require.Zero(t, hits.Load())
}

func TestPrefetchHandler_BadTaskPayloadNotRetried(t *testing.T) {
	h, _, _ := newPrefetchFixture(t)

	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskPrefetchFavorites, []byte(`{`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
