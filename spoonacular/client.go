// Package spoonacular is a client for the Spoonacular recipe API with
// response caching and a small classified error taxonomy.
package spoonacular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/katemorely/tastebase/cache"
)

const DefaultBaseURL = "https://api.spoonacular.com"

// DefaultTTL is how long cached provider responses stay fresh
const DefaultTTL = 5 * time.Minute

// DefaultPageSize is the result-count limit used when options leave it unset
const DefaultPageSize = 12

// defaultRandomCount matches the provider default for the random endpoint
const defaultRandomCount = 6

type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string

	cache cache.Cache // optional; nil means no cache
	ttl   time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

func WithCache(cacheImpl cache.Cache, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.ttl = cacheImpl, ttl }
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("apiKey required")
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
		apiKey:  apiKey,
		ttl:     DefaultTTL,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) newReq(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(u.Path, endpoint)
	q := u.Query()
	q.Set("apiKey", c.apiKey)
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// getJSON performs a provider GET, going through the cache when cacheable.
// The cache key is derived from endpoint + params only, never the API key.
func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string]string, cacheable bool, out any) error {
	var key string
	if c.cache != nil && cacheable {
		key = c.cache.KeyFor(endpoint, params)
		if entry, ok := c.cache.Read(key, c.ttl); ok {
			if err := json.Unmarshal(entry.Body, out); err == nil {
				return nil
			}
		}
	}

	req, err := c.newReq(ctx, endpoint, params)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Kind: KindUnknown, Endpoint: endpoint, Message: "decode response: " + err.Error()}
	}

	if c.cache != nil && cacheable {
		_ = c.cache.Write(key, &cache.Entry{Body: body})
	}
	return nil
}

// SearchOptions narrows a free-text search. Zero values are omitted from
// the request.
type SearchOptions struct {
	Number       int // result-count limit, defaults to DefaultPageSize
	Offset       int
	Cuisine      string
	Diet         string
	Intolerances string
	MealType     string
	MaxReadyTime int // minutes
}

func (o SearchOptions) params(query string) map[string]string {
	n := o.Number
	if n <= 0 {
		n = DefaultPageSize
	}
	p := map[string]string{
		"query":                query,
		"number":               strconv.Itoa(n),
		"addRecipeInformation": "true",
	}
	if o.Offset > 0 {
		p["offset"] = strconv.Itoa(o.Offset)
	}
	if o.Cuisine != "" {
		p["cuisine"] = o.Cuisine
	}
	if o.Diet != "" {
		p["diet"] = o.Diet
	}
	if o.Intolerances != "" {
		p["intolerances"] = o.Intolerances
	}
	if o.MealType != "" {
		p["type"] = o.MealType
	}
	if o.MaxReadyTime > 0 {
		p["maxReadyTime"] = strconv.Itoa(o.MaxReadyTime)
	}
	return p
}

// SearchByText searches recipes by free text via complexSearch. The
// provider's result ordering is preserved.
func (c *Client) SearchByText(ctx context.Context, query string, opts SearchOptions) ([]RecipeSummary, error) {
	var out searchResponse
	if err := c.getJSON(ctx, "/recipes/complexSearch", opts.params(query), true, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// IngredientOptions narrows an ingredient search
type IngredientOptions struct {
	Number int // result-count limit, defaults to DefaultPageSize
	// Ranking selects the provider strategy: 1 maximizes used ingredients,
	// 2 minimizes missing ones. Defaults to 1.
	Ranking int
	// IncludePantry counts pantry staples (salt, water, ...) as missing.
	// The default excludes them, matching the provider's ignorePantry=true.
	IncludePantry bool
}

// SearchByIngredients finds recipes using the given ingredients. Each
// ingredient is lower-cased and trimmed before it reaches the wire or the
// cache key; the used/missed counts come back from the provider unmodified.
func (c *Client) SearchByIngredients(ctx context.Context, ingredients []string, opts IngredientOptions) ([]RecipeSummary, error) {
	cleaned := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		ing = strings.ToLower(strings.TrimSpace(ing))
		if ing != "" {
			cleaned = append(cleaned, ing)
		}
	}

	n := opts.Number
	if n <= 0 {
		n = DefaultPageSize
	}
	ranking := opts.Ranking
	if ranking <= 0 {
		ranking = 1
	}
	params := map[string]string{
		"ingredients":  strings.Join(cleaned, ","),
		"number":       strconv.Itoa(n),
		"ranking":      strconv.Itoa(ranking),
		"ignorePantry": strconv.FormatBool(!opts.IncludePantry),
	}

	var out []RecipeSummary
	if err := c.getJSON(ctx, "/recipes/findByIngredients", params, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDetails fetches the full recipe information including nutrition
func (c *Client) GetDetails(ctx context.Context, id int64) (*RecipeDetail, error) {
	endpoint := fmt.Sprintf("/recipes/%d/information", id)
	var out RecipeDetail
	if err := c.getJSON(ctx, endpoint, map[string]string{"includeNutrition": "true"}, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RandomOptions narrows a random-recipe request
type RandomOptions struct {
	Number int    // defaults to the provider's 6
	Tags   string // comma-separated tag filter
}

// GetRandom fetches random recipes. Responses are never cached so repeated
// calls can return different results.
func (c *Client) GetRandom(ctx context.Context, opts RandomOptions) ([]RecipeSummary, error) {
	n := opts.Number
	if n <= 0 {
		n = defaultRandomCount
	}
	params := map[string]string{"number": strconv.Itoa(n)}
	if opts.Tags != "" {
		params["tags"] = opts.Tags
	}

	var out randomResponse
	if err := c.getJSON(ctx, "/recipes/random", params, false, &out); err != nil {
		return nil, err
	}
	return out.Recipes, nil
}

// GetNutrition fetches the nutrition widget data for a recipe
func (c *Client) GetNutrition(ctx context.Context, id int64) (*NutritionWidget, error) {
	endpoint := fmt.Sprintf("/recipes/%d/nutritionWidget.json", id)
	var out NutritionWidget
	if err := c.getJSON(ctx, endpoint, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEquipment fetches the equipment widget data for a recipe
func (c *Client) GetEquipment(ctx context.Context, id int64) (*Equipment, error) {
	endpoint := fmt.Sprintf("/recipes/%d/equipmentWidget.json", id)
	var out Equipment
	if err := c.getJSON(ctx, endpoint, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
