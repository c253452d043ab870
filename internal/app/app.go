// Package app はアプリケーションの初期化・依存関係のワイヤリング・起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/closetpic/internal/auth"
	"github.com/hitoshi/closetpic/internal/baserow"
	"github.com/hitoshi/closetpic/internal/config"
	"github.com/hitoshi/closetpic/internal/handler"
	"github.com/hitoshi/closetpic/internal/image"
	"github.com/hitoshi/closetpic/internal/logger"
	"github.com/hitoshi/closetpic/internal/metrics"
	"github.com/hitoshi/closetpic/internal/middleware"
	"github.com/hitoshi/closetpic/internal/security"
	"github.com/hitoshi/closetpic/internal/session"
	"github.com/hitoshi/closetpic/internal/token"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envファイルの読み込み。存在しない場合は環境変数のみを使う
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとメトリクスサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セッショントークンコーデック。
	// 鍵が空の場合はここで失敗する（フォールバック鍵は存在しない）
	codec, err := token.NewCodec(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}
	sessions := session.NewManager(codec, cfg.CookieDomain, cfg.CookieSecure)

	// 2. メトリクスコレクター
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 外部ストアクライアントとアダプタ
	baserowClient, err := baserow.NewClient(
		&http.Client{Timeout: cfg.UpstreamTimeout},
		cfg.BaserowAPIURL, cfg.BaserowAPIKey,
		slog.Default(), collector,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize baserow client: %w", err)
	}

	userStore := baserow.NewUserStore(baserowClient, cfg.BaserowUsersTableID)
	imageStore := baserow.NewImageStore(baserowClient, cfg.BaserowImagesTableID)

	// 4. セキュリティサービス
	sanitizer := security.NewFieldSanitizer()
	mediaGuard := security.NewMediaGuard(baserowClient.Host(), cfg.BaserowMediaHost)
	mediaClient := mediaGuard.NewSafeClient(cfg.UpstreamTimeout)

	// 5. ドメインサービス
	authService := auth.NewService(userStore, sanitizer)
	imageService := image.NewService(imageStore, baserowClient, sanitizer, cfg.MaxUploadSize)

	// 6. レート制限（configはreq/min単位、limiterはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.CredentialRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
	rateLimiterCfg.CredentialBurst = cfg.RateLimitAuth
	rateLimiterCfg.UploadRate = rate.Limit(float64(cfg.RateLimitUpload) / 60.0)
	rateLimiterCfg.UploadBurst = cfg.RateLimitUpload

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Sessions:          sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		RecordHTTPStatus:  collector.RecordHTTPStatus,

		AuthService: authService,
		AuthMetrics: collector,

		ImageService:  imageService,
		MediaGuard:    mediaGuard,
		MediaClient:   mediaClient,
		MaxUploadSize: cfg.MaxUploadSize,
		UploadMetrics: collector,

		StaticDir: cfg.StaticDir,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // アップロードとメディアストリーミングを考慮
		IdleTimeout:  60 * time.Second,
	}

	// メトリクスサーバーは別ポートで起動（外部公開しない前提）
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metrics.SetupMetricsRoute(registry),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
