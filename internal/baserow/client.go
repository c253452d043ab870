// Package baserow はBaserowホステッドAPIのクライアントとストアアダプタを提供する。
// 外部のテーブル・カラム名はこのパッケージの中に閉じ込め、ドメイン層には漏らさない。
package baserow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MetricsRecorder は外部ストア呼び出しのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordUpstreamLatency(operation string, d time.Duration)
	RecordUpstreamError(operation string)
}

// Client はBaserow REST APIのクライアント。
// 行の一覧取得・作成とユーザーファイルのアップロードを提供する。
// タイムアウトは注入されたhttp.Client側で設定する。
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが不正な場合はエラーを返す。metricsはnil可。
func NewClient(httpClient *http.Client, baseURL, apiKey string, logger *slog.Logger, metrics MetricsRecorder) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("BaserowのベースURLのパースに失敗しました: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("BaserowのベースURLが不正です: %s", baseURL)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    parsed,
		apiKey:     apiKey,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Host はBaserow APIのホスト名を返す。メディアプロキシの許可リスト構築に使用する。
func (c *Client) Host() string {
	return c.baseURL.Hostname()
}

// listResponse は行一覧エンドポイントのレスポンス形式。
type listResponse struct {
	Count   int             `json:"count"`
	Next    *string         `json:"next"`
	Results json.RawMessage `json:"results"`
}

// rowsURL は行エンドポイントのURLを構築する。Baserowは末尾スラッシュを要求する。
func (c *Client) rowsURL(tableID string, query url.Values) string {
	base := strings.TrimRight(c.baseURL.String(), "/")
	return fmt.Sprintf("%s/api/database/rows/table/%s/?%s", base, tableID, query.Encode())
}

// ListRows はテーブルの行を一覧取得し、resultsをoutにデコードする。
// カラム名はBaserow上のユーザー定義名（user_field_names=true）で返される。
func (c *Client) ListRows(ctx context.Context, tableID string, out any) error {
	q := url.Values{}
	q.Set("user_field_names", "true")
	q.Set("size", "200")

	body, err := c.do(ctx, "list_rows", http.MethodGet, c.rowsURL(tableID, q), "", nil)
	if err != nil {
		return err
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("行一覧レスポンスのパースに失敗しました: %w", err)
	}
	if err := json.Unmarshal(list.Results, out); err != nil {
		return fmt.Errorf("行データのパースに失敗しました: %w", err)
	}

	return nil
}

// CreateRow はテーブルに新しい行を作成する。
// payloadのキーはBaserow上のユーザー定義カラム名に一致させる。
// outが非nilの場合は作成された行をデコードする。
func (c *Client) CreateRow(ctx context.Context, tableID string, payload any, out any) error {
	q := url.Values{}
	q.Set("user_field_names", "true")

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("行ペイロードのエンコードに失敗しました: %w", err)
	}

	body, err := c.do(ctx, "create_row", http.MethodPost, c.rowsURL(tableID, q), "application/json", bytes.NewReader(encoded))
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("作成された行のパースに失敗しました: %w", err)
		}
	}

	return nil
}

// FileMetadata はBaserowユーザーファイルアップロードのレスポンス。
type FileMetadata struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type"`
	IsImage    bool   `json:"is_image"`
	UploadedAt string `json:"uploaded_at"`
}

// UploadFile はファイルをBaserowユーザーファイルストレージにアップロードする。
// 保存先URLを含むメタデータを返す。
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*FileMetadata, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("マルチパートフォームの作成に失敗しました: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("ファイル内容の読み取りに失敗しました: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("マルチパートフォームの終端に失敗しました: %w", err)
	}

	uploadURL := strings.TrimRight(c.baseURL.String(), "/") + "/api/user-files/upload-file/"

	body, err := c.do(ctx, "upload_file", http.MethodPost, uploadURL, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}

	var meta FileMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("アップロードレスポンスのパースに失敗しました: %w", err)
	}

	return &meta, nil
}

// do は認証ヘッダー付きでHTTPリクエストを実行し、レスポンスボディを返す。
// レイテンシとエラーをメトリクスに記録する。
func (c *Client) do(ctx context.Context, operation, method, rawURL, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(operation, time.Since(start))
	}
	if err != nil {
		c.recordError(operation)
		c.logger.Error("Baserow APIの呼び出しに失敗しました",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("Baserow APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordError(operation)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordError(operation)
		// エラーボディの詳細はログのみに記録し、呼び出し元には渡さない
		c.logger.Error("Baserow APIがエラーステータスを返しました",
			slog.String("operation", operation),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", truncate(string(respBody), 512)),
		)
		return nil, fmt.Errorf("Baserow APIがステータス %d を返しました", resp.StatusCode)
	}

	return respBody, nil
}

func (c *Client) recordError(operation string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamError(operation)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "") + "..."
}
