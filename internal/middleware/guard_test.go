package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/closetpic/internal/token"
)

// --- モック定義 ---

type mockSessionReader struct {
	getFn func(r *http.Request) *token.Principal
}

func (m *mockSessionReader) Get(r *http.Request) *token.Principal {
	if m.getFn != nil {
		return m.getFn(r)
	}
	return nil
}

func validPrincipal() *token.Principal {
	return &token.Principal{Name: "Ana", Email: "ana@x.com"}
}

// --- テスト ---

// TestRouteGuard_TransitionTable はルート分類とセッション有効性による
// 4通りの遷移をすべて検証する。
func TestRouteGuard_TransitionTable(t *testing.T) {
	cases := []struct {
		name         string
		path         string
		principal    *token.Principal
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "public route with session redirects home",
			path:         "/login",
			principal:    validPrincipal(),
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/",
		},
		{
			name:       "public route without session passes",
			path:       "/register",
			principal:  nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "protected route with session passes",
			path:       "/gallery",
			principal:  validPrincipal(),
			wantStatus: http.StatusOK,
		},
		{
			name:         "protected route without session redirects to login",
			path:         "/gallery",
			principal:    nil,
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
		},
		{
			name:         "home without session redirects to login",
			path:         "/",
			principal:    nil,
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := &mockSessionReader{
				getFn: func(r *http.Request) *token.Principal { return tc.principal },
			}

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			})

			guard := NewRouteGuardMiddleware(sessions)(next)

			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			w := httptest.NewRecorder()
			guard.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != tc.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantLocation != "" {
				if loc := resp.Header.Get("Location"); loc != tc.wantLocation {
					t.Errorf("Location = %q, want %q", loc, tc.wantLocation)
				}
				if nextCalled {
					t.Error("next handler should not be called on redirect")
				}
			} else if !nextCalled {
				t.Error("next handler should be called")
			}
		})
	}
}

// TestRouteGuard_DoesNotMutateSession はガードがCookieを書き換えないことを検証する。
func TestRouteGuard_DoesNotMutateSession(t *testing.T) {
	sessions := &mockSessionReader{
		getFn: func(r *http.Request) *token.Principal { return validPrincipal() },
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := NewRouteGuardMiddleware(sessions)(next)

	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	w := httptest.NewRecorder()
	guard.ServeHTTP(w, req)

	if cookies := w.Result().Cookies(); len(cookies) != 0 {
		t.Errorf("guard set %d cookies, want 0", len(cookies))
	}
}

// TestRouteGuard_SessionPanic_TreatedAsNoSession はセッション読み取りのpanicが
// 「セッションなし」として最も制限的な遷移に倒れることを検証する。
func TestRouteGuard_SessionPanic_TreatedAsNoSession(t *testing.T) {
	sessions := &mockSessionReader{
		getFn: func(r *http.Request) *token.Principal { panic("corrupt session state") },
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guard := NewRouteGuardMiddleware(sessions)(next)

	req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
	w := httptest.NewRecorder()
	guard.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

// TestIsPublicPath は公開ルート集合の完全一致判定を検証する。
func TestIsPublicPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/login", true},
		{"/register", true},
		{"/", false},
		{"/gallery", false},
		{"/login/", false},
		{"/loginx", false},
	}

	for _, tc := range cases {
		if got := IsPublicPath(tc.path); got != tc.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
