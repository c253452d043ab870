// Package security はアプリケーションのセキュリティ機能を提供する。
//
// FieldSanitizerService はユーザー入力のテキストフィールド（参照コード、
// ブランド名、表示名など）をサニタイズし、保存データ経由のXSSを防ぐ。
// これらのフィールドはプレーンテキストとして扱うため、bluemondayの
// StrictPolicyですべてのHTMLを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// FieldSanitizerService はテキストフィールドのサニタイズ機能のインターフェースを定義する。
// 登録時の表示名とアップロード時のメタデータフィールドに使用される。
type FieldSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLを除去し、前後の空白を削る。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(s string) string
}

// fieldSanitizer はFieldSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type fieldSanitizer struct {
	policy *bluemonday.Policy
}

// NewFieldSanitizer はFieldSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグを一切許可しないため、入力はプレーンテキストに落ちる。
func NewFieldSanitizer() *fieldSanitizer {
	return &fieldSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLを除去する。
func (s *fieldSanitizer) Sanitize(v string) string {
	return strings.TrimSpace(s.policy.Sanitize(v))
}
