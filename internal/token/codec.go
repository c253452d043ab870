// Package token は署名付きセッショントークンのエンコード・デコードを提供する。
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/closetpic/internal/model"
)

// Principal はセッショントークンに埋め込む認証済みユーザーを表す。
type Principal struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// sessionClaims はトークンのペイロード。
// 標準のiat/expクレームに加えてプリンシパルを持つ。
type sessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Codec はHMAC（HS256）署名付きトークンのエンコーダ・デコーダ。
// 署名鍵は起動時に1回設定し、イミュータブルとして扱う。
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec はCodecを生成する。
// 署名鍵が空の場合は設定エラーを返す。安全でないデフォルト鍵への
// フォールバックはどの環境でも行わない。
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, model.NewConfigurationError("SESSION_SECRET")
	}
	if ttl <= 0 {
		return nil, model.NewConfigurationError("SESSION_TTL")
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// TTL はトークンの有効期間を返す。
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode はプリンシパルを署名付きトークンにエンコードする。
// トークンに埋め込んだ有効期限と同じ時刻を返すため、Cookie側の
// 有効期限を常にトークンと一致させられる。
func (c *Codec) Encode(p Principal) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(c.ttl)

	claims := sessionClaims{
		Name:  p.Name,
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Decode はトークンの署名と有効期限を検証し、プリンシパルを返す。
// 検証失敗（署名不一致、署名方式の不一致、改ざん、期限切れ、不正な形式）は
// すべて一律にnilを返す。呼び出し元は「有効なセッションがない」ことを
// Cookieの欠落と区別せずに扱える。
func (c *Codec) Decode(tokenStr string) *Principal {
	if tokenStr == "" {
		return nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil
	}
	if claims.Email == "" {
		return nil
	}

	return &Principal{
		Name:  claims.Name,
		Email: claims.Email,
	}
}
