package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestSetup_WritesJSON はログがJSON形式で指定のwriterに出力されることを検証する。
func TestSetup_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("test message", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v (output: %q)", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

// TestSetup_DebugSuppressed はInfoレベル設定でDebugログが抑制されることを検証する。
func TestSetup_DebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("debug log should be suppressed, got %q", buf.String())
	}
}
