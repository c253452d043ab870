// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/closetpic/internal/token"
)

// SessionReader はリクエストからセッションを読み取るインターフェース。
// session.Managerの部分集合として定義する。
type SessionReader interface {
	Get(r *http.Request) *token.Principal
}

// publicPaths は認証なしで到達できるページパスの集合。
// 完全一致で判定し、ここに含まれないパスはすべて保護対象とする。
var publicPaths = map[string]struct{}{
	"/login":    {},
	"/register": {},
}

// IsPublicPath はパスが公開ルートかどうかを返す。
func IsPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// NewRouteGuardMiddleware はページルートの認可ガードを返す。
//
// 判定はパスの分類とセッションの有効性のみによる純粋な遷移で、
// セッション状態は変更しない:
//   - 公開ルート + 有効セッション     → ホームへリダイレクト
//   - 公開ルート + セッションなし     → 通過
//   - 保護ルート + 有効セッション     → 通過
//   - 保護ルート + セッションなし     → ログインへリダイレクト
//
// アセットやAPIパスはこのミドルウェアの対象外で、ルーター側で
// ガードなしのグループに登録する。
func NewRouteGuardMiddleware(sessions SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := readSession(sessions, r)
			isPublic := IsPublicPath(r.URL.Path)

			if isPublic && principal != nil {
				// ログイン済みユーザーにログイン・登録ページは表示しない
				http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
				return
			}

			if !isPublic && principal == nil {
				http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// readSession はセッションを読み取る。デコード中のpanicは「セッションなし」として
// 扱い、最も制限的な遷移（保護ルートならログインへ）に倒す。
func readSession(sessions SessionReader, r *http.Request) (principal *token.Principal) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("session decode panicked",
				slog.Any("panic", rec),
				slog.String("path", r.URL.Path),
			)
			principal = nil
		}
	}()
	return sessions.Get(r)
}
