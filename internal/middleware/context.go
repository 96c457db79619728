// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"sync"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// requestStateContextKey は外側のミドルウェアと共有するリクエスト状態のキー。
	requestStateContextKey = contextKey("request_state")
)

// requestState は内側のミドルウェアで判明した情報を外側のミドルウェアへ渡す。
// context.WithValueは内側から外側へ値を返せないため、ポインタを共有する。
type requestState struct {
	mu     sync.Mutex
	userID string

	// 同一リクエスト内でのベアラートークン検証結果
	checkedToken string
	tokenUserID  string
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	if st, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		return ctx, st
	}
	st := &requestState{}
	return context.WithValue(ctx, requestStateContextKey, st), st
}

func (s *requestState) setUserID(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *requestState) getUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// recordVerification はトークンの検証結果を記録する。検証失敗時はuserIDを空とする。
func (s *requestState) recordVerification(token, userID string) {
	s.mu.Lock()
	s.checkedToken = token
	s.tokenUserID = userID
	s.mu.Unlock()
}

// verification は記録済みの検証結果を返す。tokenが未検証ならfoundはfalse。
func (s *requestState) verification(token string) (userID string, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkedToken == "" || s.checkedToken != token {
		return "", false
	}
	return s.tokenUserID, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// 外側のミドルウェアがリクエスト状態を用意している場合はそちらにも記録する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if st, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		st.setUserID(userID)
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}
