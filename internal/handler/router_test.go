package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/moviefav/internal/auth"
	"github.com/hitoshi/moviefav/internal/favorite"
	"github.com/hitoshi/moviefav/internal/middleware"
	"github.com/hitoshi/moviefav/internal/model"
	"github.com/hitoshi/moviefav/internal/repository"
	"github.com/hitoshi/moviefav/internal/security"
)

// --- インメモリリポジトリ ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	r.users[user.ID] = user
	return nil
}

type memFavoriteRepo struct {
	mu        sync.Mutex
	favorites []*model.Favorite
}

func (r *memFavoriteRepo) Create(ctx context.Context, fav *model.Favorite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.favorites {
		if f.UserID == fav.UserID && f.MovieID == fav.MovieID {
			return repository.ErrDuplicateFavorite
		}
	}
	r.favorites = append(r.favorites, fav)
	return nil
}

func (r *memFavoriteRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Favorite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*model.Favorite, 0)
	for _, f := range r.favorites {
		if f.UserID == userID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (r *memFavoriteRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, f := range r.favorites {
		if f.ID == id && f.UserID == userID {
			r.favorites = append(r.favorites[:i], r.favorites[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// --- テストヘルパー ---

type testServer struct {
	handler http.Handler
}

func newTestRouter(t *testing.T, modify func(deps *RouterDeps)) *testServer {
	t.Helper()

	issuer := auth.NewIssuer("router-test-secret", time.Hour)
	deps := &RouterDeps{
		TokenVerifier:     issuer,
		CORSAllowedOrigin: "*",
		AuthService:       auth.NewService(newMemUserRepo(), issuer, auth.ServiceConfig{BcryptCost: bcrypt.MinCost}),
		MovieService: &mockMovieService{
			searchFn: func(ctx context.Context, query string) (json.RawMessage, error) {
				return json.RawMessage(`{"Search":[{"Title":"The Matrix","imdbID":"tt0133093"}],"Response":"True"}`), nil
			},
		},
		FavoriteService: favorite.NewService(&memFavoriteRepo{}, security.NewMetadataSanitizer()),
		DB:              &mockPinger{},
	}
	if modify != nil {
		modify(deps)
	}
	return &testServer{handler: NewRouter(deps)}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, username, email string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "correct horse",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", email, w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatal("register returned empty token")
	}
	return token
}

func favoritesOf(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var body struct {
		Favorites []map[string]any `json:"favorites"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode favorites: %v", err)
	}
	if body.Favorites == nil {
		t.Fatal("favorites must be an array, got null")
	}
	return body.Favorites
}

// --- テスト ---

func TestRouter_MatrixScenario(t *testing.T) {
	s := newTestRouter(t, nil)
	token := s.register(t, "neo", "Neo@Example.com")

	w := s.do(t, http.MethodGet, "/api/movies/search?q=matrix", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tt0133093") {
		t.Fatalf("search: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/favorites", token, map[string]string{
		"movieId": "tt0133093", "title": "The Matrix", "year": "1999",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: status = %d, body = %s", w.Code, w.Body.String())
	}
	fav, _ := decodeBody(t, w)["favorite"].(map[string]any)
	favID, _ := fav["id"].(string)

	w = s.do(t, http.MethodPost, "/favorites", token, map[string]string{
		"movieId": "tt0133093", "title": "The Matrix",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate add: status = %d, want 409", w.Code)
	}

	favorites := favoritesOf(t, s.do(t, http.MethodGet, "/favorites", token, nil))
	if len(favorites) != 1 || favorites[0]["movieId"] != "tt0133093" {
		t.Fatalf("favorites = %v", favorites)
	}

	w = s.do(t, http.MethodDelete, "/api/favorites/"+favID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove: status = %d, body = %s", w.Code, w.Body.String())
	}

	if favorites := favoritesOf(t, s.do(t, http.MethodGet, "/api/favorites", token, nil)); len(favorites) != 0 {
		t.Errorf("favorites after remove = %v", favorites)
	}

	w = s.do(t, http.MethodDelete, "/api/favorites/"+favID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second remove: status = %d, want 404", w.Code)
	}
}

func TestRouter_TwoUserIsolation(t *testing.T) {
	s := newTestRouter(t, nil)
	alice := s.register(t, "alice", "alice@example.com")
	bob := s.register(t, "bob", "bob@example.com")

	w := s.do(t, http.MethodPost, "/favorites", alice, map[string]string{"movieId": "tt0133093", "title": "The Matrix"})
	fav, _ := decodeBody(t, w)["favorite"].(map[string]any)
	favID, _ := fav["id"].(string)

	if favorites := favoritesOf(t, s.do(t, http.MethodGet, "/favorites", bob, nil)); len(favorites) != 0 {
		t.Errorf("bob sees %v", favorites)
	}

	w = s.do(t, http.MethodDelete, "/favorites/"+favID, bob, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign remove: status = %d, want 404", w.Code)
	}

	if favorites := favoritesOf(t, s.do(t, http.MethodGet, "/favorites", alice, nil)); len(favorites) != 1 {
		t.Errorf("alice favorites = %v, want 1", favorites)
	}
}

func TestRouter_InvalidInputRejectedWith400(t *testing.T) {
	s := newTestRouter(t, nil)
	token := s.register(t, "neo", "neo@example.com")

	tests := []struct {
		name  string
		path  string
		token string
		body  map[string]string
	}{
		{"エンコード済みscriptのtitle", "/api/favorites", token, map[string]string{
			"movieId": "tt0133093", "title": "x &lt;script&gt;alert(1)&lt;/script&gt;",
		}},
		{"タグを含むtitle", "/api/favorites", token, map[string]string{
			"movieId": "tt0133093", "title": "Fast<Furious>",
		}},
		{"長すぎるmovieId", "/api/favorites", token, map[string]string{
			"movieId": strings.Repeat("a", 65), "title": "The Matrix",
		}},
		{"長すぎるtitle", "/api/favorites", token, map[string]string{
			"movieId": "tt0133093", "title": strings.Repeat("x", 501),
		}},
		{"長すぎるusername", "/api/auth/register", "", map[string]string{
			"username": strings.Repeat("u", 101), "email": "long@example.com", "password": "correct horse",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, tt.token, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body = %s", w.Code, w.Body.String())
			}
			if code := decodeBody(t, w)["code"]; code != model.ErrCodeInvalidField {
				t.Errorf("code = %v, want %s", code, model.ErrCodeInvalidField)
			}
		})
	}

	if favorites := favoritesOf(t, s.do(t, http.MethodGet, "/api/favorites", token, nil)); len(favorites) != 0 {
		t.Errorf("rejected input must not be stored: %v", favorites)
	}
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	s := newTestRouter(t, nil)
	s.register(t, "trinity", "trinity@example.com")

	w := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "imposter", "email": "  TRINITY@example.com ", "password": "x",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("case-insensitive duplicate: status = %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "Trinity@Example.com", "password": "correct horse",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)

	w = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status = %d", w.Code)
	}
	if user, _ := decodeBody(t, w)["user"].(map[string]any); user["email"] != "trinity@example.com" {
		t.Errorf("me user = %v", user)
	}

	wrong := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "trinity@example.com", "password": "bad"})
	unknown := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "bad"})
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d / %d, want 401", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("wrong password and unknown email bodies differ:\n%s\n%s", wrong.Body.String(), unknown.Body.String())
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	s := newTestRouter(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/favorites"},
		{http.MethodPost, "/api/favorites"},
		{http.MethodDelete, "/favorites/abc"},
		{http.MethodGet, "/auth/me"},
	} {
		w := s.do(t, tc.method, tc.path, "not-a-jwt", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}
}

func TestRouter_HealthSecurityHeadersAndNotFound(t *testing.T) {
	s := newTestRouter(t, nil)

	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status = %d", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS headers missing")
	}

	w = s.do(t, http.MethodGet, "/nowhere", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("unknown route Content-Type = %q", ct)
	}

	w = s.do(t, http.MethodOptions, "/api/favorites", "", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: status = %d, want 204", w.Code)
	}
}

func TestRouter_RateLimitAppliesGlobally(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Requests: 2, Window: time.Hour})
	t.Cleanup(rl.Stop)
	s := newTestRouter(t, func(deps *RouterDeps) { deps.RateLimiter = rl })

	for i := 0; i < 2; i++ {
		if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := s.do(t, http.MethodGet, "/movies/search?q=x", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRouter_MetricsEndpointAndRouteLabels(t *testing.T) {
	collector := &recordingCollector{}
	s := newTestRouter(t, func(deps *RouterDeps) {
		deps.Metrics = collector
		deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		})
	})

	if w := s.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK || w.Body.String() != "# metrics\n" {
		t.Errorf("metrics: status = %d, body = %q", w.Code, w.Body.String())
	}
	s.do(t, http.MethodGet, "/api/movies/tt0133093", "", nil)

	if len(collector.routes) != 2 {
		t.Fatalf("routes = %v", collector.routes)
	}
	if collector.routes[1] != "/api/movies/{id}" {
		t.Errorf("route label = %q, want /api/movies/{id}", collector.routes[1])
	}
}
