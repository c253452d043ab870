package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	CredentialRate  rate.Limit    // ログイン・登録のレート（req/sec）
	CredentialBurst int           // ログイン・登録のバーストサイズ
	UploadRate      rate.Limit    // アップロードのレート（req/sec）
	UploadBurst     int           // アップロードのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、認証エンドポイント 10 req/min/IP、
// アップロード 20 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		CredentialRate:  rate.Limit(10.0 / 60.0),
		CredentialBurst: 10,
		UploadRate:      rate.Limit(20.0 / 60.0),
		UploadBurst:     20,
		CleanupInterval: 5 * time.Minute,
	}
}

// limiterEntry はキーごとのレートリミッターとアクセス時刻を保持する。
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterGroup は1種類のレート制限に対するキー別リミッターの集合。
type limiterGroup struct {
	mu       sync.RWMutex
	entries  map[string]*limiterEntry
	rateVal  rate.Limit
	burstVal int
}

func newLimiterGroup(r rate.Limit, burst int) *limiterGroup {
	return &limiterGroup{
		entries:  make(map[string]*limiterEntry),
		rateVal:  r,
		burstVal: burst,
	}
}

// get はキーに対応するリミッターを取得または作成する。
func (g *limiterGroup) get(key string) *rate.Limiter {
	g.mu.RLock()
	e, exists := g.entries[key]
	g.mu.RUnlock()

	if exists {
		g.mu.Lock()
		e.lastAccess = time.Now()
		g.mu.Unlock()
		return e.limiter
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// ダブルチェック
	if e, exists := g.entries[key]; exists {
		e.lastAccess = time.Now()
		return e.limiter
	}

	limiter := rate.NewLimiter(g.rateVal, g.burstVal)
	g.entries[key] = &limiterEntry{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// count は現在管理されているエントリ数を返す。テストおよびメトリクス用。
func (g *limiterGroup) count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// cleanup は最終アクセス時刻がttlを超えたエントリを削除する。
func (g *limiterGroup) cleanup(ttl time.Duration) {
	now := time.Now()
	g.mu.Lock()
	for key, e := range g.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(g.entries, key)
		}
	}
	g.mu.Unlock()
}

// RateLimiter はキーごとのレート制限を管理する。
// API全般（ユーザー別）、認証エンドポイント（クライアントIP別）、
// アップロード（ユーザー別）の3種類を提供する。
type RateLimiter struct {
	config     RateLimiterConfig
	general    *limiterGroup
	credential *limiterGroup
	upload     *limiterGroup
	stopCh     chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:     config,
		general:    newLimiterGroup(config.GeneralRate, config.GeneralBurst),
		credential: newLimiterGroup(config.CredentialRate, config.CredentialBurst),
		upload:     newLimiterGroup(config.UploadRate, config.UploadBurst),
		stopCh:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにプリンシパルが含まれている必要がある
// （RequireSessionMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := PrincipalFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !rl.general.get(p.Email).Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("user", p.Email),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CredentialMiddleware はログイン・登録エンドポイント専用のレート制限ミドルウェアを返す。
// 未認証リクエストが対象のため、クライアントIPをキーとする。
func (rl *RateLimiter) CredentialMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !rl.credential.get(key).Allow() {
				writeRateLimitResponse(w, rl.config.CredentialRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", key),
					slog.String("limit_type", "credential"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UploadMiddleware はアップロード専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) UploadMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := PrincipalFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !rl.upload.get(p.Email).Allow() {
				writeRateLimitResponse(w, rl.config.UploadRate)
				slog.Warn("rate limit exceeded",
					slog.String("user", p.Email),
					slog.String("limit_type", "upload"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// CredentialLimiterCount は現在管理されている認証リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) CredentialLimiterCount() int {
	return rl.credential.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	ttl := rl.config.CleanupInterval * 2

	for {
		select {
		case <-ticker.C:
			rl.general.cleanup(ttl)
			rl.credential.cleanup(ttl)
			rl.upload.cleanup(ttl)
		case <-rl.stopCh:
			return
		}
	}
}

// clientIP はリクエスト元のIPアドレスを返す。
// ポート部は取り除く。パースできない場合はRemoteAddrをそのまま使う。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
