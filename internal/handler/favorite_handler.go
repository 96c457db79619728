package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/moviefav/internal/favorite"
	"github.com/hitoshi/moviefav/internal/model"
)

// FavoriteServiceInterface はお気に入りハンドラーが必要とするサービスインターフェース。
type FavoriteServiceInterface interface {
	Add(ctx context.Context, userID string, in favorite.AddInput) (*model.Favorite, error)
	List(ctx context.Context, userID string) ([]*model.Favorite, error)
	Remove(ctx context.Context, userID, favoriteID string) error
}

// FavoriteHandler はお気に入り管理のHTTPハンドラー。
// すべてのルートは認証ミドルウェアの内側に配置する。
type FavoriteHandler struct {
	service FavoriteServiceInterface
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(service FavoriteServiceInterface) *FavoriteHandler {
	return &FavoriteHandler{service: service}
}

type addFavoriteRequest struct {
	MovieID string `json:"movieId"`
	Title   string `json:"title"`
	Poster  string `json:"poster"`
	Year    string `json:"year"`
}

type favoriteListResponse struct {
	Favorites []*model.Favorite `json:"favorites"`
}

type addFavoriteResponse struct {
	Message  string          `json:"message"`
	Favorite *model.Favorite `json:"favorite"`
}

// ListFavorites は認証ユーザーのお気に入り一覧を返す。
// GET /favorites
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	favorites, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, favoriteListResponse{Favorites: favorites})
}

// AddFavorite はお気に入りを登録する。
// POST /favorites
func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addFavoriteRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	fav, err := h.service.Add(r.Context(), userID, favorite.AddInput{
		MovieID: req.MovieID,
		Title:   req.Title,
		Poster:  req.Poster,
		Year:    req.Year,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addFavoriteResponse{
		Message:  "Added to favorites",
		Favorite: fav,
	})
}

// RemoveFavorite はお気に入りを削除する。
// DELETE /favorites/{id}
func (h *FavoriteHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Removed from favorites"})
}
