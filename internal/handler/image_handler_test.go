package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/closetpic/internal/image"
	"github.com/hitoshi/closetpic/internal/model"
)

// --- モック ---

type mockImageService struct {
	listFn   func(ctx context.Context) ([]model.StoredImage, error)
	uploadFn func(ctx context.Context, params image.UploadParams) error
}

func (m *mockImageService) List(ctx context.Context) ([]model.StoredImage, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockImageService) Upload(ctx context.Context, params image.UploadParams) error {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, params)
	}
	return nil
}

type mockMediaGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockMediaGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

type mockUploadMetrics struct {
	uploadedFiles int
}

func (m *mockUploadMetrics) RecordUpload(fileCount int) { m.uploadedFiles += fileCount }

// multipartUpload はテスト用のマルチパートリクエストボディを構築する。
func multipartUpload(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, val := range fields {
		mw.WriteField(key, val)
	}
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// --- テスト ---

// TestImageHandler_ListImages はカタログ一覧が200で返ることを検証する。
func TestImageHandler_ListImages(t *testing.T) {
	service := &mockImageService{
		listFn: func(ctx context.Context) ([]model.StoredImage, error) {
			return []model.StoredImage{
				{ID: "row-1-0", Src: "https://media.example.com/a.jpg", Alt: "a.jpg", Category: "default"},
			}, nil
		},
	}
	h := NewImageHandler(service, &mockMediaGuard{}, http.DefaultClient, 1024, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	w := httptest.NewRecorder()

	h.ListImages(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var images []model.StoredImage
	json.NewDecoder(w.Result().Body).Decode(&images)
	if len(images) != 1 || images[0].ID != "row-1-0" {
		t.Errorf("images = %+v", images)
	}
}

// TestImageHandler_ListImages_EmptyCatalog は空のカタログがnullではなく
// 空配列で返ることを検証する。
func TestImageHandler_ListImages_EmptyCatalog(t *testing.T) {
	h := NewImageHandler(&mockImageService{}, &mockMediaGuard{}, http.DefaultClient, 1024, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	w := httptest.NewRecorder()

	h.ListImages(w, req)

	body := bytes.TrimSpace(w.Body.Bytes())
	if string(body) != "[]" {
		t.Errorf("body = %s, want []", body)
	}
}

// TestImageHandler_Upload_Success はマルチパートのフィールドとファイルが
// サービスに渡ることを検証する。
func TestImageHandler_Upload_Success(t *testing.T) {
	var gotParams image.UploadParams
	service := &mockImageService{
		uploadFn: func(ctx context.Context, params image.UploadParams) error {
			gotParams = params
			// Readerはハンドラーのスコープ内でのみ有効なため、ここで読み切る
			for i := range params.Files {
				io.ReadAll(params.Files[i].Reader)
			}
			return nil
		},
	}
	metrics := &mockUploadMetrics{}
	h := NewImageHandler(service, &mockMediaGuard{}, http.DefaultClient, 1<<20, metrics)

	body, contentType := multipartUpload(t,
		map[string]string{
			"referencia":     "REF-1",
			"marca":          "Acme",
			"dia":            "5",
			"mes":            "Janeiro",
			"ano":            "2026",
			"dataRegistrada": "2026-01-05",
		},
		map[string]string{"a.jpg": "aaa", "b.jpg": "bbb"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if gotParams.Reference != "REF-1" || gotParams.Brand != "Acme" {
		t.Errorf("Reference/Brand = %q/%q", gotParams.Reference, gotParams.Brand)
	}
	if gotParams.Day != "5" || gotParams.Year != "2026" {
		t.Errorf("Day/Year = %q/%q", gotParams.Day, gotParams.Year)
	}
	if len(gotParams.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(gotParams.Files))
	}
	if gotParams.Files[0].Name != "a.jpg" || gotParams.Files[0].Size != 3 {
		t.Errorf("Files[0] = %+v", gotParams.Files[0])
	}
	if metrics.uploadedFiles != 2 {
		t.Errorf("uploadedFiles = %d, want 2", metrics.uploadedFiles)
	}
}

// TestImageHandler_Upload_FileTooLarge はサービスのサイズ超過エラーが
// 413として返ることを検証する。
func TestImageHandler_Upload_FileTooLarge(t *testing.T) {
	service := &mockImageService{
		uploadFn: func(ctx context.Context, params image.UploadParams) error {
			return model.NewFileTooLargeError("big.jpg", 2)
		},
	}
	h := NewImageHandler(service, &mockMediaGuard{}, http.DefaultClient, 1<<20, nil)

	body, contentType := multipartUpload(t, nil, map[string]string{"big.jpg": "xxx"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

// TestImageHandler_Upload_NotMultipart はマルチパートでないボディが400に
// なることを検証する。
func TestImageHandler_Upload_NotMultipart(t *testing.T) {
	h := NewImageHandler(&mockImageService{}, &mockMediaGuard{}, http.DefaultClient, 1<<20, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader([]byte(`{"json":"body"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestImageHandler_MediaFile_StreamsUpstream は許可されたURLのファイルが
// Content-Typeごとストリーミングされることを検証する。
func TestImageHandler_MediaFile_StreamsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer upstream.Close()

	h := NewImageHandler(&mockImageService{}, &mockMediaGuard{}, upstream.Client(), 1024, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/files?src="+upstream.URL+"/a.jpg", nil)
	w := httptest.NewRecorder()

	h.MediaFile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "jpeg-bytes" {
		t.Errorf("body = %q", body)
	}
}

// TestImageHandler_MediaFile_BlockedURL はガードが拒否したURLが400になり、
// 外部リクエストが発生しないことを検証する。
func TestImageHandler_MediaFile_BlockedURL(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer upstream.Close()

	guard := &mockMediaGuard{
		validateFn: func(rawURL string) error {
			return errors.New("host not in allowlist")
		},
	}
	h := NewImageHandler(&mockImageService{}, guard, upstream.Client(), 1024, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/files?src="+upstream.URL+"/a.jpg", nil)
	w := httptest.NewRecorder()

	h.MediaFile(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if upstreamCalled {
		t.Error("upstream should not be called for blocked URL")
	}
}

// TestImageHandler_MediaFile_MissingSrc はsrcパラメータなしが400になることを検証する。
func TestImageHandler_MediaFile_MissingSrc(t *testing.T) {
	h := NewImageHandler(&mockImageService{}, &mockMediaGuard{}, http.DefaultClient, 1024, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	w := httptest.NewRecorder()

	h.MediaFile(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestImageHandler_MediaFile_UpstreamError は外部ストレージの障害が
// 500として返ることを検証する。
func TestImageHandler_MediaFile_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	h := NewImageHandler(&mockImageService{}, &mockMediaGuard{}, upstream.Client(), 1024, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/files?src="+upstream.URL+"/missing.jpg", nil)
	w := httptest.NewRecorder()

	h.MediaFile(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
