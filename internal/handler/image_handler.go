package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/closetpic/internal/image"
	"github.com/hitoshi/closetpic/internal/middleware"
	"github.com/hitoshi/closetpic/internal/model"
)

// ImageServiceInterface は画像ハンドラーが必要とするサービスインターフェース。
type ImageServiceInterface interface {
	List(ctx context.Context) ([]model.StoredImage, error)
	Upload(ctx context.Context, params image.UploadParams) error
}

// MediaGuard はメディアプロキシのURL検証インターフェース。
type MediaGuard interface {
	ValidateURL(rawURL string) error
}

// UploadMetrics はアップロードのメトリクス記録インターフェース。nil可。
type UploadMetrics interface {
	RecordUpload(fileCount int)
}

// ImageHandler は画像カタログとメディアプロキシのHTTPハンドラー。
type ImageHandler struct {
	service       ImageServiceInterface
	guard         MediaGuard
	mediaClient   *http.Client
	maxUploadSize int64
	metrics       UploadMetrics
}

// NewImageHandler はImageHandlerを生成する。
// mediaClientにはSSRF防止機能付きのクライアントを渡す。metricsはnil可。
func NewImageHandler(service ImageServiceInterface, guard MediaGuard, mediaClient *http.Client, maxUploadSize int64, metrics UploadMetrics) *ImageHandler {
	return &ImageHandler{
		service:       service,
		guard:         guard,
		mediaClient:   mediaClient,
		maxUploadSize: maxUploadSize,
		metrics:       metrics,
	}
}

// ListImages はカタログの全画像を返す。
// GET /api/images
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.List(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}

	// 空のカタログでもnullではなく[]を返す
	if images == nil {
		images = []model.StoredImage{}
	}

	writeJSON(w, http.StatusOK, images)
}

// Upload はマルチパートフォームの画像ファイル群を受け取り、
// カタログエントリを作成する。
// POST /api/upload （フィールド: files、referencia、marca、dia、mes、ano、dataRegistrada）
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// 1. マルチパートフォームのパース。
	// ボディ全体の上限はファイル数分のサイズ + フォームフィールドの余裕
	maxFiles := int64(10)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize*maxFiles+1<<20)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeAPIError(w, model.NewValidationError("マルチパートフォームのパースに失敗しました。"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]

	// 2. 各ファイルをオープン
	files := make([]image.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			slog.Error("failed to open uploaded file",
				slog.String("file", fh.Filename),
				slog.String("error", err.Error()),
			)
			middleware.WriteInternalServerError(w)
			return
		}
		defer f.Close()

		files = append(files, image.UploadedFile{
			Name:   fh.Filename,
			Size:   fh.Size,
			Reader: f,
		})
	}

	// 3. アップロード処理
	err := h.service.Upload(r.Context(), image.UploadParams{
		Reference:  r.FormValue("referencia"),
		Brand:      r.FormValue("marca"),
		Day:        r.FormValue("dia"),
		Month:      r.FormValue("mes"),
		Year:       r.FormValue("ano"),
		RecordedAt: r.FormValue("dataRegistrada"),
		Files:      files,
	})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUpload(len(files))
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":       true,
		"uploaded": len(files),
	})
}

// MediaFile は外部ストレージのファイルをバックエンド経由でストリーミングする。
// フロントエンドに外部ストアの認証情報を渡さないためのプロキシ。
// GET /api/files?src=<url>
func (h *ImageHandler) MediaFile(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		writeAPIError(w, model.NewValidationError("srcパラメータは必須です。"))
		return
	}

	// 1. URLの事前検証（スキーム・許可リスト・IPブロック）
	if err := h.guard.ValidateURL(src); err != nil {
		slog.Warn("blocked media URL",
			slog.String("src", src),
			slog.String("reason", err.Error()),
		)
		writeAPIError(w, model.NewBlockedMediaURLError())
		return
	}

	// 2. 外部ストレージからの取得
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		writeAPIError(w, model.NewBlockedMediaURLError())
		return
	}

	resp, err := h.mediaClient.Do(req)
	if err != nil {
		slog.Error("media fetch failed",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
		writeAPIError(w, model.NewUpstreamError())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("media fetch returned non-OK status",
			slog.String("src", src),
			slog.Int("http_status", resp.StatusCode),
		)
		writeAPIError(w, model.NewUpstreamError())
		return
	}

	// 3. ストリーミング
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if _, err := io.Copy(w, resp.Body); err != nil {
		// ヘッダー送信後のため、ログのみ
		slog.Error("media streaming interrupted",
			slog.String("src", src),
			slog.String("error", err.Error()),
		)
	}
}
