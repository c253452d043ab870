// Package session はHTTP Cookieを介したセッションの作成・取得・破棄を提供する。
// サーバー側のセッションテーブルは持たず、署名付きトークンのみを永続形とする。
package session

import (
	"net/http"

	"github.com/hitoshi/closetpic/internal/token"
)

// CookieName はセッショントークンを保持するCookieの名前。
const CookieName = "session"

// Manager はセッションCookieの読み書きを行う。
// Cookieの有効期限はトークンに埋め込まれた有効期限と常に同一の時刻から設定する。
type Manager struct {
	codec  *token.Codec
	domain string
	secure bool
}

// NewManager はManagerを生成する。
func NewManager(codec *token.Codec, domain string, secure bool) *Manager {
	return &Manager{
		codec:  codec,
		domain: domain,
		secure: secure,
	}
}

// Create はプリンシパルをエンコードしてセッションCookieを設定する。
// 設定するCookieは1つだけで、ExpiresはトークンのExpと同じ時刻になる。
func (m *Manager) Create(w http.ResponseWriter, p token.Principal) error {
	tokenStr, expiresAt, err := m.codec.Encode(p)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tokenStr,
		Path:     "/",
		Domain:   m.domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Get はリクエストのセッションCookieをデコードしてプリンシパルを返す。
// Cookieの欠落・改ざん・期限切れはすべて一律にnilを返す。
func (m *Manager) Get(r *http.Request) *token.Principal {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	return m.codec.Decode(cookie.Value)
}

// Delete はセッションCookieを削除する。
// Cookieが存在しない場合でもエラーにはならない（冪等）。
func (m *Manager) Delete(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
