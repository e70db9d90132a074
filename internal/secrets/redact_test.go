package secrets

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactor_ScrubsMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewRedactor(slog.NewTextHandler(&buf, nil), "supersecret"))

	logger.Info("token supersecret rejected", "token", "supersecret", "instance", "i-1")

	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Errorf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "***") {
		t.Errorf("placeholder missing from output: %s", out)
	}
	if !strings.Contains(out, "i-1") {
		t.Errorf("unrelated attribute lost: %s", out)
	}
}

func TestRedactor_ScrubsEmbeddedValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewRedactor(slog.NewTextHandler(&buf, nil), "supersecret"))

	logger.Warn("exchange failed", "error", "status 401: token supersecret is invalid")

	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Errorf("secret leaked inside attribute value: %s", out)
	}
}

func TestRedactor_AddLater(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(slog.NewTextHandler(&buf, nil))
	logger := slog.New(r)

	logger.Info("before registration", "v", "lateSecret")
	if !strings.Contains(buf.String(), "lateSecret") {
		t.Fatal("value should pass through before registration")
	}

	buf.Reset()
	r.Add("lateSecret")
	logger.Info("after registration", "v", "lateSecret")
	if strings.Contains(buf.String(), "lateSecret") {
		t.Errorf("secret leaked after registration: %s", buf.String())
	}
}

func TestRedactor_IgnoresEmptyValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewRedactor(slog.NewTextHandler(&buf, nil), ""))

	logger.Info("plain message")
	if strings.Contains(buf.String(), "***") {
		t.Errorf("empty value must not redact anything: %s", buf.String())
	}
}
