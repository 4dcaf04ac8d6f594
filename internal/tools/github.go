package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/libgen-go/internal/logging"
)

const (
	defaultGitHubURL = "https://api.github.com"
	// maxReadmeBytes caps how much README text is read.
	maxReadmeBytes = 1 << 20
)

// errNotFound marks a 404 from the GitHub API.
var errNotFound = errors.New("not found")

// GitHubConfig holds the settings for constructing a GitHubClient.
type GitHubConfig struct {
	// Token is an optional personal access token (GITHUB_TOKEN). Without one
	// the API allows 10 searches per minute.
	Token string
	// BaseURL overrides the API endpoint (default: https://api.github.com).
	BaseURL string
	// Language restricts repository search, e.g. "python". Empty searches all.
	Language string
	// RateLimit is the request rate in requests per second (default: 1).
	RateLimit float64
	// Timeout bounds each request (default: 30s).
	Timeout time.Duration
}

// GitHubClient locates a library's repository and fetches its README and
// root layout. It is safe for concurrent use.
type GitHubClient struct {
	// cfg holds the resolved configuration.
	cfg GitHubConfig
	// client performs requests.
	client *http.Client
	// limiter throttles requests to stay under API quotas.
	limiter *rate.Limiter
}

// NewGitHubClient applies defaults to cfg and returns a GitHubClient.
func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GitHubClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 3),
	}
}

// Name returns the tool name.
func (g *GitHubClient) Name() string { return "github_analyzer" }

// Description returns the tool description.
func (g *GitHubClient) Description() string {
	return "Finds a library's GitHub repository and returns its README and layout."
}

// githubRepo is the subset of repository fields used.
type githubRepo struct {
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
}

// githubContent is one root directory entry.
type githubContent struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Execute searches for the most-starred repository matching in.Library. A
// failed search is a collaborator error. When the search has no hits, Found
// is false. README and layout failures leave those fields empty.
func (g *GitHubClient) Execute(ctx context.Context, in RepoInput) (RepoInfo, error) {
	log := logging.FromContext(ctx).With(slog.String("library", in.Library))

	repo, err := g.searchRepository(ctx, in.Library)
	if err != nil {
		return RepoInfo{}, collaboratorError(g.Name(), "search repositories", err)
	}
	if repo == nil {
		log.Info("github: no repository found")
		return RepoInfo{Found: false}, nil
	}

	info := RepoInfo{
		Found:       true,
		URL:         repo.HTMLURL,
		FullName:    repo.FullName,
		Description: repo.Description,
		Stars:       repo.Stars,
	}

	readme, err := g.readme(ctx, repo.FullName)
	if err != nil {
		log.Warn("github: readme unavailable", slog.String("repo", repo.FullName), slog.Any("error", err))
	}
	info.Readme = readme

	structure, err := g.structure(ctx, repo.FullName)
	if err != nil {
		log.Warn("github: contents unavailable", slog.String("repo", repo.FullName), slog.Any("error", err))
	}
	info.Structure = structure

	log.Info("github: repository analysed",
		slog.String("repo", info.FullName),
		slog.Int("stars", info.Stars),
		slog.Bool("readme", info.Readme != ""),
	)
	return info, nil
}

// searchRepository returns the top hit by stars, or nil when there is none.
func (g *GitHubClient) searchRepository(ctx context.Context, library string) (*githubRepo, error) {
	q := library
	if g.cfg.Language != "" {
		q += " language:" + g.cfg.Language
	}
	params := url.Values{"q": {q}, "sort": {"stars"}, "order": {"desc"}, "per_page": {"1"}}

	var resp struct {
		Items []githubRepo `json:"items"`
	}
	body, err := g.get(ctx, "/search/repositories?"+params.Encode(), "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return &resp.Items[0], nil
}

// readme returns the raw README for fullName, or "" when there is none.
func (g *GitHubClient) readme(ctx context.Context, fullName string) (string, error) {
	body, err := g.get(ctx, "/repos/"+fullName+"/readme", "application/vnd.github.raw")
	if errors.Is(err, errNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxReadmeBytes))
	if err != nil {
		return "", fmt.Errorf("read readme: %w", err)
	}
	return string(data), nil
}

// structure lists the repository root.
func (g *GitHubClient) structure(ctx context.Context, fullName string) (*RepoStructure, error) {
	body, err := g.get(ctx, "/repos/"+fullName+"/contents", "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var entries []githubContent
	if err := json.NewDecoder(body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode contents: %w", err)
	}

	s := &RepoStructure{Files: make([]string, 0, len(entries))}
	for _, e := range entries {
		s.Files = append(s.Files, e.Name)
		lower := strings.ToLower(e.Name)
		if strings.Contains(lower, "example") {
			s.HasExamples = true
		}
		if strings.Contains(lower, "doc") {
			s.HasDocs = true
		}
	}
	return s, nil
}

// get issues a rate-limited GET and returns the body of a 200 response. The
// caller closes the body.
func (g *GitHubClient) get(ctx context.Context, path, accept string) (io.ReadCloser, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, errNotFound
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
