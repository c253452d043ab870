package baserow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/closetpic/internal/model"
)

// userRow はBaserowのUsersテーブルの1行。
// JSONタグは外部システム上のユーザー定義カラム名で、この型の外には出さない。
type userRow struct {
	ID        int    `json:"id"`
	UID       string `json:"UID"`
	Name      string `json:"Name"`
	Email     string `json:"Email"`
	Password  string `json:"Password"`
	Active    bool   `json:"Active"`
	CreatedAt string `json:"Created At"`
}

// UserStore はBaserowのUsersテーブルをユーザーストアとして公開するアダプタ。
// 外部カラム名とドメインモデルの相互変換を担う。
type UserStore struct {
	client  *Client
	tableID string
}

// NewUserStore はUserStoreを生成する。
func NewUserStore(client *Client, tableID string) *UserStore {
	return &UserStore{
		client:  client,
		tableID: tableID,
	}
}

// FindByEmail はメールアドレスでユーザーを検索する。
// 比較は大文字小文字を区別しない。見つからない場合は(nil, nil)を返す。
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var rows []userRow
	if err := s.client.ListRows(ctx, s.tableID, &rows); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	for _, row := range rows {
		if row.Email != "" && strings.EqualFold(row.Email, email) {
			return toModelUser(row), nil
		}
	}

	return nil, nil
}

// Create は新しいユーザー行を作成する。
// 一意性は事前のFindByEmailによるベストエフォートの検査のみで、
// ストア側の一意制約はない（読み取り→書き込みの競合は残る）。
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	payload := map[string]any{
		"UID":        user.ID,
		"Name":       user.Name,
		"Email":      user.Email,
		"Password":   user.PasswordHash,
		"Active":     user.Active,
		"Created At": user.CreatedAt.Format(time.RFC3339),
	}

	if err := s.client.CreateRow(ctx, s.tableID, payload, nil); err != nil {
		return fmt.Errorf("ユーザー行の作成に失敗しました: %w", err)
	}

	return nil
}

// toModelUser は外部の行表現をドメインモデルに変換する。
func toModelUser(row userRow) *model.User {
	id := row.UID
	if id == "" {
		// UIDカラムを持たない既存行はBaserowの行IDにフォールバックする
		id = strconv.Itoa(row.ID)
	}

	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	return &model.User{
		ID:           id,
		Name:         row.Name,
		Email:        row.Email,
		PasswordHash: row.Password,
		Active:       row.Active,
		CreatedAt:    createdAt,
	}
}
