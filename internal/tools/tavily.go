package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/libgen-go/internal/logging"
)

const (
	defaultTavilyURL        = "https://api.tavily.com"
	defaultTavilyMaxResults = 5
	defaultTavilyMaxBreadth = 20
)

// TavilyConfig holds the settings for constructing a TavilyClient.
type TavilyConfig struct {
	// APIKey is the Tavily API key. Required.
	APIKey string
	// BaseURL overrides the API endpoint (default: https://api.tavily.com).
	BaseURL string
	// MaxResults caps search hits (default: 5).
	MaxResults int
	// MaxBreadth caps links followed per crawl level (default: 20).
	MaxBreadth int
	// Timeout bounds each request (default: 60s).
	Timeout time.Duration
}

// TavilyClient calls the Tavily search and crawl endpoints. It is safe for
// concurrent use.
type TavilyClient struct {
	// cfg holds the resolved configuration.
	cfg TavilyConfig
	// httpClient performs requests.
	httpClient *http.Client
}

// NewTavilyClient validates cfg and applies defaults.
func NewTavilyClient(cfg TavilyConfig) (*TavilyClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("tools: tavily: APIKey is required (TAVILY_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTavilyURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultTavilyMaxResults
	}
	if cfg.MaxBreadth <= 0 {
		cfg.MaxBreadth = defaultTavilyMaxBreadth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &TavilyClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}, nil
}

// tavilySearchRequest is the /search request body.
type tavilySearchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

// tavilySearchResponse is the /search response body.
type tavilySearchResponse struct {
	Results []SearchResult `json:"results"`
}

// tavilyCrawlRequest is the /crawl request body.
type tavilyCrawlRequest struct {
	URL          string `json:"url"`
	Instructions string `json:"instructions,omitempty"`
	MaxBreadth   int    `json:"max_breadth"`
	ExtractDepth string `json:"extract_depth"`
}

// tavilyCrawlResponse is the /crawl response body.
type tavilyCrawlResponse struct {
	Results []struct {
		URL        string `json:"url"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

// SearchQuery builds the documentation search query for a library and task.
func SearchQuery(library, task string) string {
	q := library + " documentation tutorial"
	if task = strings.TrimSpace(task); task != "" {
		q += " " + task
	}
	return q
}

// Search runs a documentation search for in.
func (c *TavilyClient) Search(ctx context.Context, in SearchInput) ([]SearchResult, error) {
	query := SearchQuery(in.Library, in.Task)
	logging.FromContext(ctx).Info("tavily: searching", slog.String("query", query))

	var resp tavilySearchResponse
	err := c.post(ctx, "/search", tavilySearchRequest{
		Query:       query,
		SearchDepth: "advanced",
		MaxResults:  c.cfg.MaxResults,
	}, &resp)
	if err != nil {
		return nil, collaboratorError("tavily_search", "search", err)
	}
	return resp.Results, nil
}

// Crawl crawls the site rooted at in.URL.
func (c *TavilyClient) Crawl(ctx context.Context, in CrawlInput) (CrawlOutput, error) {
	logging.FromContext(ctx).Info("tavily: crawling", slog.String("url", in.URL))

	var resp tavilyCrawlResponse
	err := c.post(ctx, "/crawl", tavilyCrawlRequest{
		URL:          in.URL,
		Instructions: in.Instructions,
		MaxBreadth:   c.cfg.MaxBreadth,
		ExtractDepth: "advanced",
	}, &resp)
	if err != nil {
		return CrawlOutput{}, collaboratorError("tavily_crawl", "crawl "+in.URL, err)
	}

	out := CrawlOutput{Results: make([]Page, 0, len(resp.Results))}
	for _, r := range resp.Results {
		if strings.TrimSpace(r.RawContent) == "" {
			continue
		}
		out.Results = append(out.Results, Page{URL: r.URL, Content: r.RawContent})
	}
	return out, nil
}

// post sends body as JSON to path and decodes the response into out.
func (c *TavilyClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// TavilySearch adapts TavilyClient.Search to the Tool interface.
type TavilySearch struct{ client *TavilyClient }

// NewTavilySearch returns the search tool backed by client.
func NewTavilySearch(client *TavilyClient) *TavilySearch { return &TavilySearch{client: client} }

// Name returns the tool name.
func (t *TavilySearch) Name() string { return "tavily_search" }

// Description returns the tool description.
func (t *TavilySearch) Description() string {
	return "Searches the web for library documentation and tutorials."
}

// Execute runs the search.
func (t *TavilySearch) Execute(ctx context.Context, in SearchInput) ([]SearchResult, error) {
	return t.client.Search(ctx, in)
}

// TavilyCrawl adapts TavilyClient.Crawl to the Tool interface.
type TavilyCrawl struct{ client *TavilyClient }

// NewTavilyCrawl returns the crawl tool backed by client.
func NewTavilyCrawl(client *TavilyClient) *TavilyCrawl { return &TavilyCrawl{client: client} }

// Name returns the tool name.
func (t *TavilyCrawl) Name() string { return "tavily_crawl" }

// Description returns the tool description.
func (t *TavilyCrawl) Description() string {
	return "Crawls a documentation site and returns the extracted page content."
}

// Execute runs the crawl.
func (t *TavilyCrawl) Execute(ctx context.Context, in CrawlInput) (CrawlOutput, error) {
	return t.client.Crawl(ctx, in)
}
