// Package tracing registers optional Langfuse tracing for chat model calls.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

const defaultHost = "http://localhost:3000"

// Settings holds the Langfuse connection read from the environment.
type Settings struct {
	// Host is the Langfuse base URL (LANGFUSE_HOST, default: http://localhost:3000).
	Host string
	// PublicKey is LANGFUSE_PUBLIC_KEY.
	PublicKey string
	// SecretKey is LANGFUSE_SECRET_KEY.
	SecretKey string
}

// Enabled reports whether both keys are present.
func (s Settings) Enabled() bool {
	return s.PublicKey != "" && s.SecretKey != ""
}

// SettingsFromEnv reads Settings from LANGFUSE_* variables.
func SettingsFromEnv() Settings {
	s := Settings{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if s.Host == "" {
		s.Host = defaultHost
	}
	return s
}

// Enable appends a Langfuse handler to eino's global callbacks when s is
// enabled. The returned flush function is never nil and must be called
// before exit so buffered traces are sent.
func Enable(s Settings, log *slog.Logger) (flush func()) {
	if !s.Enabled() {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
		return func() {}
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      s.Host,
		PublicKey: s.PublicKey,
		SecretKey: s.SecretKey,
	})
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled", slog.String("host", s.Host))
	return flusher
}
