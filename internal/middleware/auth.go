package middleware

import (
	"net/http"
	"strings"

	"github.com/hitoshi/moviefav/internal/model"
)

// TokenVerifier はベアラートークンを検証し、ユーザーIDを返す。
// auth.Issuerが実装する。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証するミドルウェアを返す。
// 検証に成功した場合はユーザーIDをリクエストコンテキストに注入する。
// ヘッダー欠落、形式不正、検証失敗はいずれも同じ401レスポンスとする。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := verifyBearer(r, verifier)
			if !ok {
				writeUnauthorized(w)
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verifyBearer はベアラートークンを検証してユーザーIDを返す。
// 同じリクエスト内で検証済みのトークンは記録された結果を使い、Verifyを再実行しない。
func verifyBearer(r *http.Request, verifier TokenVerifier) (string, bool) {
	token, ok := BearerToken(r)
	if !ok {
		return "", false
	}

	st, hasState := r.Context().Value(requestStateContextKey).(*requestState)
	if hasState {
		if userID, found := st.verification(token); found {
			return userID, userID != ""
		}
	}

	userID, err := verifier.Verify(token)
	if err != nil {
		userID = ""
	}
	if hasState {
		st.recordVerification(token, userID)
	}
	return userID, userID != ""
}

// BearerToken はAuthorizationヘッダーからトークンを取り出す。
// スキーム名の大文字小文字は区別しない。
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="moviefav"`)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}
