package tracing

import (
	"io"
	"log/slog"
	"testing"
)

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_HOST", "")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	s := SettingsFromEnv()
	if s.Host != defaultHost {
		t.Errorf("Host = %q, want %q", s.Host, defaultHost)
	}
	if s.Enabled() {
		t.Error("Enabled() = true with no secret key")
	}

	t.Setenv("LANGFUSE_SECRET_KEY", "sk")
	if !SettingsFromEnv().Enabled() {
		t.Error("Enabled() = false with both keys")
	}
}

func TestEnable_DisabledIsNoop(t *testing.T) {
	t.Parallel()
	flush := Enable(Settings{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if flush == nil {
		t.Fatal("flush must not be nil")
	}
	flush()
}
