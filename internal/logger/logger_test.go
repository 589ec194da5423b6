package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Strob0t/opsboard/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	closer.Close()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()

	if got := RequestID(ctx); got != "" {
		t.Errorf("expected empty request ID, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	ctx = WithProvider(ctx, "slack")
	if got := RequestID(ctx); got != "req-123" {
		t.Errorf("expected req-123 to survive WithProvider, got %q", got)
	}
	if got := fieldsFrom(ctx).provider; got != "slack" {
		t.Errorf("expected provider slack, got %q", got)
	}
}

func TestLoggerStampsFlowFields(t *testing.T) {
	var buf bytes.Buffer
	l, closer := newWithWriter(config.Logging{Level: "info", Service: "opsboard"}, &buf)
	defer closer.Close()

	ctx := WithConnectionID(WithProvider(context.Background(), "linear"), "conn-9")
	l.InfoContext(ctx, "oauth tokens refreshed")

	rec := decodeLine(t, &buf)
	if rec["provider"] != "linear" {
		t.Errorf("expected provider linear, got %v", rec["provider"])
	}
	if rec["connection_id"] != "conn-9" {
		t.Errorf("expected connection_id conn-9, got %v", rec["connection_id"])
	}
	if _, ok := rec["request_id"]; ok {
		t.Error("request_id should be omitted when unset")
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return rec
}

func TestLoggerStampsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l, closer := newWithWriter(config.Logging{Level: "info", Service: "opsboard"}, &buf)
	defer closer.Close()

	l.InfoContext(WithRequestID(context.Background(), "req-42"), "oauth start")

	rec := decodeLine(t, &buf)
	if rec["request_id"] != "req-42" {
		t.Errorf("expected request_id req-42, got %v", rec["request_id"])
	}
	if rec["service"] != "opsboard" {
		t.Errorf("expected service opsboard, got %v", rec["service"])
	}
}

func TestLoggerRedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l, closer := newWithWriter(config.Logging{Level: "info"}, &buf)
	defer closer.Close()

	l.Info("exchange",
		"access_token", "xoxb-live",
		"client_secret", "s3cret",
		"code_verifier", "abc",
		"provider", "slack",
		"error_code", "oauth_exchange_failed",
		"secret_id", "7d1c",
	)

	rec := decodeLine(t, &buf)
	for _, key := range []string{"access_token", "client_secret", "code_verifier"} {
		if rec[key] != redacted {
			t.Errorf("expected %s to be redacted, got %v", key, rec[key])
		}
	}
	if rec["provider"] != "slack" {
		t.Errorf("provider should pass through, got %v", rec["provider"])
	}
	if rec["error_code"] != "oauth_exchange_failed" {
		t.Errorf("error_code should pass through, got %v", rec["error_code"])
	}
	if rec["secret_id"] != "7d1c" {
		t.Errorf("record identifiers should pass through, got %v", rec["secret_id"])
	}
}
