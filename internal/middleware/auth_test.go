package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/closetpic/internal/token"
)

// TestRequireSession_ValidSession_InjectsPrincipal は有効なセッションで
// プリンシパルがコンテキストに注入されることを検証する。
func TestRequireSession_ValidSession_InjectsPrincipal(t *testing.T) {
	sessions := &mockSessionReader{
		getFn: func(r *http.Request) *token.Principal {
			return &token.Principal{Name: "Ana", Email: "ana@x.com"}
		},
	}

	var gotEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := PrincipalFromContext(r.Context())
		if err != nil {
			t.Fatalf("PrincipalFromContext failed: %v", err)
		}
		gotEmail = p.Email
		w.WriteHeader(http.StatusOK)
	})

	mw := NewRequireSessionMiddleware(sessions)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotEmail != "ana@x.com" {
		t.Errorf("principal email = %q, want %q", gotEmail, "ana@x.com")
	}
}

// TestRequireSession_NoSession_Returns401 はセッションなしで401のJSONエラーと
// なること（リダイレクトしないこと）を検証する。
func TestRequireSession_NoSession_Returns401(t *testing.T) {
	sessions := &mockSessionReader{}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	})

	mw := NewRequireSessionMiddleware(sessions)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if loc := resp.Header.Get("Location"); loc != "" {
		t.Errorf("unexpected redirect to %q", loc)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

// TestPrincipalFromContext_Empty はプリンシパル未設定のコンテキストでエラーとなることを検証する。
func TestPrincipalFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := PrincipalFromContext(req.Context()); err == nil {
		t.Error("expected error for context without principal")
	}
}

// TestContextWithPrincipal_RoundTrip は注入したプリンシパルが取得できることを検証する。
func TestContextWithPrincipal_RoundTrip(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := ContextWithPrincipal(req.Context(), &token.Principal{Name: "Ana", Email: "ana@x.com"})

	p, err := PrincipalFromContext(ctx)
	if err != nil {
		t.Fatalf("PrincipalFromContext failed: %v", err)
	}
	if p.Email != "ana@x.com" {
		t.Errorf("email = %q, want %q", p.Email, "ana@x.com")
	}
}
