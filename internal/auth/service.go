// Package auth はメール・パスワード認証のビジネスロジックを提供する。
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/closetpic/internal/model"
	"github.com/hitoshi/closetpic/internal/token"
)

// minPasswordLength は登録時に要求するパスワードの最小文字数。
const minPasswordLength = 6

// UserStore はユーザーの検索と作成に必要なインターフェース。
// baserow.UserStoreの部分集合として定義する。
type UserStore interface {
	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合は(nil, nil)を返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create は新しいユーザーを永続化する。
	Create(ctx context.Context, user *model.User) error
}

// Sanitizer は保存前のテキストフィールドのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(s string) string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	store     UserStore
	sanitizer Sanitizer
	hashCost  int
}

// NewService はServiceを生成する。
func NewService(store UserStore, sanitizer Sanitizer) *Service {
	return &Service{
		store:     store,
		sanitizer: sanitizer,
		hashCost:  bcrypt.DefaultCost,
	}
}

// Login は認証情報を検証してプリンシパルを返す。
// ユーザー列挙を防ぐため、「ユーザーが存在しない」「保存されたハッシュが不正」
// 「パスワード不一致」はすべて同一の認証エラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*token.Principal, error) {
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です。")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("ユーザー検索に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewUpstreamError()
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}
	if user.PasswordHash == "" {
		// パスワード未設定の行は認証不可。一般的なメッセージに倒す
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user logged in", slog.String("user", user.Email))

	return &token.Principal{
		Name:  user.Name,
		Email: user.Email,
	}, nil
}

// Register は新規ユーザーを登録する。
// メールアドレスの一意性は登録前の検索によるベストエフォートの検査で、
// ストア側に一意制約はないため、同時登録の競合は残る。
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if name == "" || email == "" || password == "" {
		return nil, model.NewValidationError("名前、メールアドレス、パスワードは必須です。")
	}
	if len(password) < minPasswordLength {
		return nil, model.NewValidationError("パスワードは6文字以上にしてください。")
	}

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		slog.Error("登録前のユーザー検索に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewUpstreamError()
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		slog.Error("パスワードハッシュの生成に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewUpstreamError()
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Name:         s.sanitize(name),
		Email:        email,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    time.Now(),
	}

	if err := s.store.Create(ctx, user); err != nil {
		slog.Error("ユーザー作成に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewUpstreamError()
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("user", user.Email),
	)

	return user, nil
}

func (s *Service) sanitize(v string) string {
	if s.sanitizer == nil {
		return v
	}
	return s.sanitizer.Sanitize(v)
}
