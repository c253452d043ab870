// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// パスワードハッシュは外部ストアとの受け渡しにのみ使用し、APIレスポンスには含めない。
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
}
