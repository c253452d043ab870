package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/closetpic/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          SessionManager
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	RecordHTTPStatus  middleware.StatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthMetrics AuthMetrics

	// 画像カタログ・メディアプロキシ
	ImageService  ImageServiceInterface
	MediaGuard    MediaGuard
	MediaClient   *http.Client
	MaxUploadSize int64
	UploadMetrics UploadMetrics

	// 静的フロントエンド
	StaticDir string
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序（全ルート共通）:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// ルートは3グループに分かれる:
//   - 認証エンドポイント・/health・/assets/*: ガードなし
//   - /api/*: セッション必須（401） + レート制限
//   - ページ: ルートガード（307リダイレクト）
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.RecordHTTPStatus))

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.AuthMetrics)
	imageHandler := NewImageHandler(deps.ImageService, deps.MediaGuard, deps.MediaClient, deps.MaxUploadSize, deps.UploadMetrics)
	pageHandler := NewPageHandler(deps.StaticDir)

	// --- ガードなしのルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// 認証エンドポイント。ログイン・登録はクライアントIP別のレート制限付き
	r.With(deps.RateLimiter.CredentialMiddleware()).Post("/login", authHandler.Login)
	r.With(deps.RateLimiter.CredentialMiddleware()).Post("/register", authHandler.Register)
	r.Post("/logout", authHandler.Logout)
	r.Get("/session", authHandler.Session)

	// 静的アセット（ログインページ自身が参照するためガード対象外）
	r.Handle("/assets/*", pageHandler.Assets())

	// --- セッション必須のAPIルート ---
	// ミドルウェアスタック: RequireSession → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireSessionMiddleware(deps.Sessions))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/images", imageHandler.ListImages)
		// POST /api/upload - アップロード専用レート制限を追加
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/upload", imageHandler.Upload)
		r.Get("/api/files", imageHandler.MediaFile)
	})

	// --- ルートガード付きのページルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRouteGuardMiddleware(deps.Sessions))

		r.Get("/", pageHandler.ServePage)
		r.Get("/login", pageHandler.ServePage)
		r.Get("/register", pageHandler.ServePage)
		r.Get("/gallery", pageHandler.ServePage)
	})

	return r
}
