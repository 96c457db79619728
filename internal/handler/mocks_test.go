package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hitoshi/moviefav/internal/auth"
	"github.com/hitoshi/moviefav/internal/favorite"
	"github.com/hitoshi/moviefav/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, username, email, password string) (*auth.Result, error)
	loginFn          func(ctx context.Context, email, password string) (*auth.Result, error)
	getCurrentUserFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, username, email, password string) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return nil, nil
}

type mockFavoriteService struct {
	addFn    func(ctx context.Context, userID string, in favorite.AddInput) (*model.Favorite, error)
	listFn   func(ctx context.Context, userID string) ([]*model.Favorite, error)
	removeFn func(ctx context.Context, userID, favoriteID string) error
}

func (m *mockFavoriteService) Add(ctx context.Context, userID string, in favorite.AddInput) (*model.Favorite, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockFavoriteService) List(ctx context.Context, userID string) ([]*model.Favorite, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockFavoriteService) Remove(ctx context.Context, userID, favoriteID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, favoriteID)
	}
	return nil
}

type mockMovieService struct {
	searchFn  func(ctx context.Context, query string) (json.RawMessage, error)
	detailsFn func(ctx context.Context, id string) (json.RawMessage, error)
}

func (m *mockMovieService) Search(ctx context.Context, query string) (json.RawMessage, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return json.RawMessage(`{}`), nil
}

func (m *mockMovieService) Details(ctx context.Context, id string) (json.RawMessage, error) {
	if m.detailsFn != nil {
		return m.detailsFn(ctx, id)
	}
	return json.RawMessage(`{}`), nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

type authAttempt struct {
	operation string
	success   bool
}

type recordingCollector struct {
	attempts []authAttempt
	routes   []string
}

func (c *recordingCollector) RecordHTTPRequest(_, route string, _ int, _ time.Duration) {
	c.routes = append(c.routes, route)
}
func (c *recordingCollector) RecordProviderLookup(string, bool, time.Duration) {}
func (c *recordingCollector) RecordCacheLookup(string, bool)                   {}
func (c *recordingCollector) RecordAuthAttempt(operation string, success bool) {
	c.attempts = append(c.attempts, authAttempt{operation, success})
}

func testUser() *model.User {
	return &model.User{
		ID:           "11111111-1111-1111-1111-111111111111",
		Username:     "neo",
		Email:        "neo@example.com",
		PasswordHash: "$2a$10$secret-hash",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}
