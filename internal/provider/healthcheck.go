package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// httpHealthCheck checks a model-listing endpoint, which every supported
// HTTP backend serves without generating tokens.
type httpHealthCheck struct {
	// url is the endpoint to GET.
	url string
	// header holds authentication headers.
	header http.Header
	// client performs the check.
	client *http.Client
}

// HealthCheck issues a GET and treats any 2xx response as healthy.
func (h *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	req.Header = h.header.Clone()

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider: health check returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a zero-cost check for cfg's backend, or nil when the
// backend has none (bedrock).
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	client := &http.Client{Timeout: 5 * time.Second}
	h := &httpHealthCheck{header: http.Header{}, client: client}

	switch cfg.Backend {
	case BackendOllama:
		host := cfg.Ollama.Host
		if host == "" {
			host = defaultOllamaHost
		}
		h.url = strings.TrimRight(host, "/") + "/api/tags"
	case BackendOpenAI:
		base := cfg.OpenAI.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		h.url = strings.TrimRight(base, "/") + "/models"
		h.header.Set("Authorization", "Bearer "+cfg.OpenAI.APIKey)
	case BackendAzure:
		az := cfg.AzureOpenAI
		h.url = strings.TrimRight(az.Endpoint, "/") + "/openai/models?api-version=" + url.QueryEscape(az.APIVersion)
		h.header.Set("api-key", az.APIKey)
	case BackendGemini:
		h.url = "https://generativelanguage.googleapis.com/v1beta/models"
		h.header.Set("x-goog-api-key", cfg.Gemini.APIKey)
	default:
		return nil
	}
	return h
}
