package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "test-session-secret-32bytes-long!")
	t.Setenv("BASEROW_API_URL", "https://api.baserow.io")
	t.Setenv("BASEROW_API_KEY", "test-api-key")
	t.Setenv("BASEROW_USERS_TABLE_ID", "101")
	t.Setenv("BASEROW_IMAGES_TABLE_ID", "102")
	t.Setenv("BASE_URL", "http://localhost:8080")
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.BaserowAPIURL != "https://api.baserow.io" {
		t.Errorf("BaserowAPIURL = %q, want https://api.baserow.io", cfg.BaserowAPIURL)
	}

	// グローバルロガーがJSON出力に設定されていることを確認
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	// 必須環境変数をすべてクリア
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("BASEROW_API_URL", "")
	t.Setenv("BASEROW_API_KEY", "")
	t.Setenv("BASEROW_USERS_TABLE_ID", "")
	t.Setenv("BASEROW_IMAGES_TABLE_ID", "")
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

// TestRun_WithMissingEnv_ReturnsError は必須環境変数なしのserveが
// フェイルファストすることを検証する。
func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("BASEROW_API_URL", "")
	t.Setenv("BASEROW_API_KEY", "")
	t.Setenv("BASEROW_USERS_TABLE_ID", "")
	t.Setenv("BASEROW_IMAGES_TABLE_ID", "")
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

// TestRun_Healthcheck_NoServer はサーバーが起動していない状態の
// healthcheckがエラーを返すことを検証する。
func TestRun_Healthcheck_NoServer(t *testing.T) {
	// 未使用ポートを指定して到達不能にする
	t.Setenv("SERVER_PORT", "59999")

	var buf bytes.Buffer
	err := Run(&buf, []string{"healthcheck"})
	if err == nil {
		t.Fatal("healthcheck without a running server should return error")
	}
}
