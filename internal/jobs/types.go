package jobs

const TaskPrefetchFavorites = "favorites:prefetch"

type PrefetchFavoritesPayload struct {
	UserID string `json:"user_id"`
}
