// Package image は画像カタログの一覧とアップロードのビジネスロジックを提供する。
package image

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/closetpic/internal/baserow"
	"github.com/hitoshi/closetpic/internal/model"
)

// ImageStore はカタログ行の取得と作成に必要なインターフェース。
// baserow.ImageStoreの部分集合として定義する。
type ImageStore interface {
	ListImages(ctx context.Context) ([]model.StoredImage, error)
	CreateEntry(ctx context.Context, entry model.ImageEntry) error
}

// FileUploader はファイルを外部ストレージにアップロードするインターフェース。
type FileUploader interface {
	UploadFile(ctx context.Context, filename string, r io.Reader) (*baserow.FileMetadata, error)
}

// Sanitizer は保存前のテキストフィールドのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// UploadedFile はアップロードリクエストに含まれる1ファイルを表す。
// Sizeはマルチパートヘッダー由来の申告サイズ。
type UploadedFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadParams はカタログエントリのアップロードパラメータ。
// 日付フィールドはフォーム由来のため文字列で受け取る。
type UploadParams struct {
	Reference  string
	Brand      string
	Day        string
	Month      string
	Year       string
	RecordedAt string
	Files      []UploadedFile
}

// Service は画像カタログのビジネスロジックを提供する。
type Service struct {
	store         ImageStore
	uploader      FileUploader
	sanitizer     Sanitizer
	maxUploadSize int64
}

// NewService はServiceを生成する。
func NewService(store ImageStore, uploader FileUploader, sanitizer Sanitizer, maxUploadSize int64) *Service {
	return &Service{
		store:         store,
		uploader:      uploader,
		sanitizer:     sanitizer,
		maxUploadSize: maxUploadSize,
	}
}

// List はカタログの全画像を取得する。
func (s *Service) List(ctx context.Context) ([]model.StoredImage, error) {
	images, err := s.store.ListImages(ctx)
	if err != nil {
		slog.Error("画像一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewUpstreamError()
	}
	return images, nil
}

// Upload は画像ファイル群をアップロードし、カタログエントリを作成する。
// 処理は2段階: まず各ファイルを順次アップロードし、その後に1つの行を作成する。
// 行作成が失敗した場合、アップロード済みファイルは外部ストレージに孤立して
// 残るため、URLをWARNログに記録する。
func (s *Service) Upload(ctx context.Context, params UploadParams) error {
	if len(params.Files) == 0 {
		return model.NewValidationError("画像ファイルを1つ以上指定してください。")
	}
	for _, f := range params.Files {
		if f.Size > s.maxUploadSize {
			return model.NewFileTooLargeError(f.Name, s.maxUploadSize)
		}
	}

	// 1. 各ファイルを順次アップロード
	files := make([]model.FileRef, 0, len(params.Files))
	names := make([]string, 0, len(params.Files))
	for _, f := range params.Files {
		meta, err := s.uploader.UploadFile(ctx, f.Name, f.Reader)
		if err != nil {
			slog.Error("ファイルのアップロードに失敗しました",
				slog.String("file", f.Name),
				slog.String("error", err.Error()),
			)
			return model.NewUpstreamError()
		}
		files = append(files, model.FileRef{URL: meta.URL, Name: meta.Name})
		names = append(names, f.Name)
	}

	// 2. カタログ行を作成
	entry := model.ImageEntry{
		UID:        uuid.New().String(),
		Reference:  s.sanitize(params.Reference),
		Brand:      s.sanitize(params.Brand),
		Day:        parseIntField(params.Day),
		Month:      s.sanitize(params.Month),
		Year:       parseIntField(params.Year),
		RecordedAt: s.sanitize(params.RecordedAt),
		Files:      files,
		Alt:        strings.Join(names, ", "),
	}

	if err := s.store.CreateEntry(ctx, entry); err != nil {
		// ファイルは既にアップロード済み。補償削除のAPIはないため孤立を記録する
		urls := make([]string, 0, len(files))
		for _, f := range files {
			urls = append(urls, f.URL)
		}
		slog.Warn("行作成に失敗し、アップロード済みファイルが孤立しました",
			slog.String("uid", entry.UID),
			slog.String("orphaned_urls", strings.Join(urls, ", ")),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError()
	}

	slog.Info("catalog entry created",
		slog.String("uid", entry.UID),
		slog.Int("files", len(files)),
	)

	return nil
}

func (s *Service) sanitize(v string) string {
	if s.sanitizer == nil {
		return v
	}
	return s.sanitizer.Sanitize(v)
}

// parseIntField はフォーム由来の数値フィールドをパースする。
// 空文字列や数値でない値は0に倒し、行には保存されない。
func parseIntField(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}
