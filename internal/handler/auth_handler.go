// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/closetpic/internal/middleware"
	"github.com/hitoshi/closetpic/internal/model"
	"github.com/hitoshi/closetpic/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*token.Principal, error)
	Register(ctx context.Context, name, email, password string) (*model.User, error)
}

// SessionManager はセッションCookieの読み書きインターフェース。
// session.Managerの部分集合として定義する。
type SessionManager interface {
	Create(w http.ResponseWriter, p token.Principal) error
	Get(r *http.Request) *token.Principal
	Delete(w http.ResponseWriter)
}

// AuthMetrics は認証関連のメトリクス記録インターフェース。nil可。
type AuthMetrics interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRegistration()
}

// AuthHandler はメール・パスワード認証のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionManager
	metrics  AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil可。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManager, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		metrics:  metrics,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はレスポンスに含めるユーザー情報。
// パスワードハッシュは決して含めない。
type userResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Login は認証情報を検証し、セッションCookieを設定する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// 1. リクエストボディのパース
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	// 2. 認証処理
	principal, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLoginFailure()
		writeAPIError(w, err)
		return
	}

	// 3. セッションCookieの設定
	if err := h.sessions.Create(w, *principal); err != nil {
		slog.Error("failed to create session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.recordLoginSuccess()

	writeJSON(w, http.StatusOK, userResponse{
		Name:  principal.Name,
		Email: principal.Email,
	})
}

// Register は新規ユーザーを登録する。
// 登録の成功はセッションを作成しない。ログインは別途行う。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRegistration()
	}

	writeJSON(w, http.StatusCreated, userResponse{
		Name:  user.Name,
		Email: user.Email,
	})
}

// Logout はセッションCookieを削除する。
// セッションの有無にかかわらず常に200を返す（冪等）。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Session は現在のセッション状態を返す。
// 未認証でも401にはせず、authenticated: falseを返す。
// GET /session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal := h.sessions.Get(r)
	if principal == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": userResponse{
			Name:  principal.Name,
			Email: principal.Email,
		},
	})
}

func (h *AuthHandler) recordLoginSuccess() {
	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}
}

func (h *AuthHandler) recordLoginFailure() {
	if h.metrics != nil {
		h.metrics.RecordLoginFailure()
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIError はエラーを統一フォーマットで書き込む。
// APIError以外のエラーは詳細をログに残し、一般的な500を返す。
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, middleware.StatusForError(apiErr), apiErr)
		return
	}

	slog.Error("unexpected handler error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
