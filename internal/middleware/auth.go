package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/closetpic/internal/model"
	"github.com/hitoshi/closetpic/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みプリンシパルを格納するためのキー。
var principalContextKey = contextKey("principal")

// NewRequireSessionMiddleware は有効なセッションを必須とするAPIミドルウェアを返す。
// 認証済みプリンシパルをリクエストコンテキストに注入する。
// 未認証リクエストには401の統一エラーレスポンスを返す（リダイレクトはしない）。
func NewRequireSessionMiddleware(sessions SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := readSession(sessions, r)
			if principal == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
					Code:     "UNAUTHORIZED",
					Message:  "ログインが必要です。",
					Category: "auth",
					Action:   "ログインしてから再度お試しください。",
				})
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext はリクエストコンテキストからプリンシパルを取得する。
// セッション必須ミドルウェアを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (*token.Principal, error) {
	p, ok := ctx.Value(principalContextKey).(*token.Principal)
	if !ok || p == nil || p.Email == "" {
		return nil, fmt.Errorf("principal not found in context")
	}
	return p, nil
}

// ContextWithPrincipal はコンテキストにプリンシパルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *token.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
