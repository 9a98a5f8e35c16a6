package spoonacular

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katemorely/tastebase/cache"
)

// mockProvider counts requests per endpoint and serves canned responses
type mockProvider struct {
	server *httptest.Server
	calls  map[string]*atomic.Int64

	failStatus int // when non-zero, every response uses this status
}

func newMockProvider(t *testing.T) *mockProvider {
	t.Helper()
	m := &mockProvider{calls: map[string]*atomic.Int64{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		m.count(r.URL.Path).Add(1)

		if m.failStatus != 0 {
			http.Error(w, "provider says no", m.failStatus)
			return
		}

		switch r.URL.Path {
		case "/recipes/complexSearch":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": 101, "title": "Lentil Soup", "readyInMinutes": 35, "servings": 4, "vegan": true},
					{"id": 102, "title": "Pasta Primavera", "readyInMinutes": 25, "servings": 2},
				},
				"totalResults": 2,
			})
		case "/recipes/findByIngredients":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 201, "title": "Tomato Salad", "usedIngredientCount": 2, "missedIngredientCount": 1},
			})
		case "/recipes/7/information":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": 7, "title": "Shakshuka", "readyInMinutes": 30, "servings": 2,
				"summary": "<b>Eggs in tomato sauce</b>",
				"extendedIngredients": []map[string]any{
					{"name": "eggs", "amount": 4, "unit": ""},
					{"name": "tomatoes", "amount": 400, "unit": "g"},
				},
				"analyzedInstructions": []map[string]any{
					{"name": "", "steps": []map[string]any{
						{"number": 1, "step": "Simmer the sauce."},
						{"number": 2, "step": "Crack in the eggs."},
					}},
				},
				"nutrition": map[string]any{"nutrients": []map[string]any{
					{"name": "Calories", "amount": 320, "unit": "kcal", "percentOfDailyNeeds": 16},
				}},
			})
		case "/recipes/random":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"recipes": []map[string]any{{"id": 301, "title": "Surprise Stew"}},
			})
		case "/recipes/7/nutritionWidget.json":
			_ = json.NewEncoder(w).Encode(map[string]any{"calories": "320", "carbs": "20g", "fat": "18g", "protein": "15g"})
		case "/recipes/7/equipmentWidget.json":
			_ = json.NewEncoder(w).Encode(map[string]any{"equipment": []map[string]any{{"name": "skillet"}}})
		default:
			http.NotFound(w, r)
		}
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockProvider) count(path string) *atomic.Int64 {
	c, ok := m.calls[path]
	if !ok {
		c = &atomic.Int64{}
		m.calls[path] = c
	}
	return c
}

func newTestClient(t *testing.T, provider *mockProvider, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(provider.server.URL)}, opts...)
	c, err := New("test-key", opts...)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestSearchByText(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider)

	results, err := c.SearchByText(context.Background(), "soup", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, int64(101), results[0].ID)
	require.Equal(t, "Lentil Soup", results[0].Title)
	require.True(t, results[0].Vegan)
	// provider ordering preserved
	require.Equal(t, int64(102), results[1].ID)
}

func TestSearchByIngredients_MatchInfoPassedThrough(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider)

	results, err := c.SearchByIngredients(context.Background(), []string{" Tomato ", "BASIL", ""}, IngredientOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 2, results[0].UsedIngredientCount)
	require.Equal(t, 1, results[0].MissedIngredientCount)
}

func TestSearchByIngredients_NormalizedCacheKey(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider, WithCache(cache.NewMemory(), DefaultTTL))
	ctx := context.Background()

	_, err := c.SearchByIngredients(ctx, []string{" Tomato ", "Basil"}, IngredientOptions{})
	require.NoError(t, err)
	_, err = c.SearchByIngredients(ctx, []string{"tomato", "basil"}, IngredientOptions{})
	require.NoError(t, err)

	require.EqualValues(t, 1, provider.count("/recipes/findByIngredients").Load(),
		"case and whitespace variants should share one cache entry")
}

func TestGetDetails(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider)

	detail, err := c.GetDetails(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Shakshuka", detail.Title)
	require.Len(t, detail.ExtendedIngredients, 2)
	require.NotNil(t, detail.Nutrition)

	steps := detail.Steps()
	require.Len(t, steps, 2)
	require.Equal(t, 1, steps[0].Number)
}

func TestGetDetails_CacheHitWithinTTL(t *testing.T) {
	provider := newMockProvider(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mem := cache.NewMemoryWithClock(func() time.Time { return now })
	c := newTestClient(t, provider, WithCache(mem, 5*time.Minute))
	ctx := context.Background()

	_, err := c.GetDetails(ctx, 7)
	require.NoError(t, err)
	_, err = c.GetDetails(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 1, provider.count("/recipes/7/information").Load(),
		"second call within TTL must be served from cache")

	// jump past the TTL; the entry is treated as absent
	now = now.Add(6 * time.Minute)
	_, err = c.GetDetails(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 2, provider.count("/recipes/7/information").Load(),
		"call after TTL expiry must refetch")
}

func TestSearchByText_CacheKeyIgnoresOptionOrder(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider, WithCache(cache.NewMemory(), DefaultTTL))
	ctx := context.Background()

	// the same options regardless of how the caller assembled them
	_, err := c.SearchByText(ctx, "a", SearchOptions{Diet: "vegan", MaxReadyTime: 30})
	require.NoError(t, err)
	_, err = c.SearchByText(ctx, "a", SearchOptions{MaxReadyTime: 30, Diet: "vegan"})
	require.NoError(t, err)

	require.EqualValues(t, 1, provider.count("/recipes/complexSearch").Load())
}

func TestGetRandom_NeverCached(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider, WithCache(cache.NewMemory(), DefaultTTL))
	ctx := context.Background()

	_, err := c.GetRandom(ctx, RandomOptions{})
	require.NoError(t, err)
	_, err = c.GetRandom(ctx, RandomOptions{})
	require.NoError(t, err)

	require.EqualValues(t, 2, provider.count("/recipes/random").Load(),
		"random results must bypass the cache")
}

func TestWidgetEndpoints(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider)
	ctx := context.Background()

	nutrition, err := c.GetNutrition(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "320", nutrition.Calories)

	equipment, err := c.GetEquipment(ctx, 7)
	require.NoError(t, err)
	require.Len(t, equipment.Equipment, 1)
	require.Equal(t, "skillet", equipment.Equipment[0].Name)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorKind
	}{
		{http.StatusPaymentRequired, KindQuotaExceeded},
		{http.StatusTooManyRequests, KindQuotaExceeded},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindServerError},
		{http.StatusBadGateway, KindServerError},
		{http.StatusTeapot, KindUnknown},
	}

	for _, tt := range tests {
		provider := newMockProvider(t)
		provider.failStatus = tt.status
		c := newTestClient(t, provider)

		_, err := c.SearchByText(context.Background(), "soup", SearchOptions{})
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, tt.expected, apiErr.Kind, "status %d", tt.status)
		require.Equal(t, tt.status, apiErr.Status)
		require.Equal(t, "/recipes/complexSearch", apiErr.Endpoint)
	}
}

func TestNetworkFailure(t *testing.T) {
	provider := newMockProvider(t)
	c := newTestClient(t, provider)
	provider.server.Close()

	_, err := c.GetDetails(context.Background(), 7)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, KindNetwork, apiErr.Kind)
	require.Zero(t, apiErr.Status)
}

func TestErrorsNotCached(t *testing.T) {
	provider := newMockProvider(t)
	provider.failStatus = http.StatusInternalServerError
	c := newTestClient(t, provider, WithCache(cache.NewMemory(), DefaultTTL))
	ctx := context.Background()

	_, err := c.GetDetails(ctx, 7)
	require.Error(t, err)

	// provider recovers; the next call must reach it
	provider.failStatus = 0
	detail, err := c.GetDetails(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "Shakshuka", detail.Title)
	require.EqualValues(t, 2, provider.count("/recipes/7/information").Load())
}
