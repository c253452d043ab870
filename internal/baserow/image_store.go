package baserow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/closetpic/internal/model"
)

// fileRef はBaserowのファイルカラム内の1ファイル参照。
type fileRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// imageRow はBaserowの画像カタログテーブルの1行。
// JSONタグは外部システム上のユーザー定義カラム名で、この型の外には出さない。
type imageRow struct {
	ID         int       `json:"id"`
	UID        string    `json:"EU IA"`
	Reference  string    `json:"REFERÊNCIA,omitempty"`
	Brand      string    `json:"MARCA,omitempty"`
	Day        int       `json:"DIA,omitempty"`
	Month      string    `json:"MES,omitempty"`
	Year       int       `json:"ANO,omitempty"`
	RecordedAt string    `json:"DATA REGISTRADA,omitempty"`
	Files      []fileRef `json:"SRC"`
	Alt        string    `json:"ALT,omitempty"`
}

// ImageStore はBaserowの画像テーブルをカタログストアとして公開するアダプタ。
type ImageStore struct {
	client  *Client
	tableID string
}

// NewImageStore はImageStoreを生成する。
func NewImageStore(client *Client, tableID string) *ImageStore {
	return &ImageStore{
		client:  client,
		tableID: tableID,
	}
}

// ListImages はカタログの全画像を取得する。
// 1行に複数ファイルが含まれる場合はファイルごとに1枚の画像に展開し、
// IDは「行UID-ファイル順序」で一意にする。
func (s *ImageStore) ListImages(ctx context.Context) ([]model.StoredImage, error) {
	var rows []imageRow
	if err := s.client.ListRows(ctx, s.tableID, &rows); err != nil {
		return nil, fmt.Errorf("画像一覧の取得に失敗しました: %w", err)
	}

	images := make([]model.StoredImage, 0, len(rows))
	for _, row := range rows {
		images = append(images, flattenImageRow(row)...)
	}

	return images, nil
}

// CreateEntry はアップロード済みファイルを参照する新しいカタログ行を作成する。
func (s *ImageStore) CreateEntry(ctx context.Context, entry model.ImageEntry) error {
	files := make([]fileRef, 0, len(entry.Files))
	for _, f := range entry.Files {
		files = append(files, fileRef{URL: f.URL, Name: f.Name})
	}

	payload := map[string]any{
		"EU IA":           entry.UID,
		"REFERÊNCIA":      entry.Reference,
		"MARCA":           entry.Brand,
		"DIA":             entry.Day,
		"MES":             entry.Month,
		"ANO":             entry.Year,
		"DATA REGISTRADA": entry.RecordedAt,
		"SRC":             files,
		"ALT":             entry.Alt,
	}

	if err := s.client.CreateRow(ctx, s.tableID, payload, nil); err != nil {
		return fmt.Errorf("カタログ行の作成に失敗しました: %w", err)
	}

	return nil
}

// flattenImageRow は1行をファイルごとの画像に展開する。
// ファイルを持たない行は空のスライスになる。
func flattenImageRow(row imageRow) []model.StoredImage {
	if len(row.Files) == 0 {
		return nil
	}

	rowID := row.UID
	if rowID == "" {
		rowID = strconv.Itoa(row.ID)
	}

	images := make([]model.StoredImage, 0, len(row.Files))
	for i, f := range row.Files {
		img := model.StoredImage{
			ID:         fmt.Sprintf("%s-%d", rowID, i),
			Src:        f.URL,
			Alt:        f.Name,
			Category:   "default",
			Reference:  row.Reference,
			Brand:      row.Brand,
			Month:      row.Month,
			RecordedAt: row.RecordedAt,
		}
		if row.Day != 0 {
			img.Day = strconv.Itoa(row.Day)
		}
		if row.Year != 0 {
			img.Year = strconv.Itoa(row.Year)
		}
		images = append(images, img)
	}

	return images
}
