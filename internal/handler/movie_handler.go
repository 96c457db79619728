package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MovieServiceInterface は映画ハンドラーが必要とするサービスインターフェース。
// 戻り値は外部APIのJSONをそのまま返す。
type MovieServiceInterface interface {
	Search(ctx context.Context, query string) (json.RawMessage, error)
	Details(ctx context.Context, id string) (json.RawMessage, error)
}

// MovieHandler は映画検索・詳細のHTTPハンドラー。
type MovieHandler struct {
	service MovieServiceInterface
}

// NewMovieHandler はMovieHandlerを生成する。
func NewMovieHandler(service MovieServiceInterface) *MovieHandler {
	return &MovieHandler{service: service}
}

// Search はタイトルで映画を検索する。
// GET /movies/search?q=
func (h *MovieHandler) Search(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeRawJSON(w, payload)
}

// Details は映画の詳細を返す。
// GET /movies/{id}
func (h *MovieHandler) Details(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.Details(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeRawJSON(w, payload)
}

// writeRawJSON は検証済みのJSONバイト列を再エンコードせずに書き込む。
func writeRawJSON(w http.ResponseWriter, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
