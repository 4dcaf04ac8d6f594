package tools

import (
	"context"
	"fmt"
		"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/54b3r/libgen-go/internal/logging"
)

// mainContentSelectors are tried in order to find a page's documentation body.
var mainContentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

// blockElements end with a paragraph break in extracted text.
const blockElements = "p, h1, h2, h3, h4, h5, h6, li, dt, dd, blockquote, table, tr, div, section"

// noiseElements are dropped before text extraction.
const noiseElements = "script, style, noscript, nav, footer, header, aside"

// paraMark and codeMark are private-use runes inserted into the DOM to mark
// paragraph boundaries and <pre> placeholders during extraction.
const (
	paraMark = "\u2029"
	codeMark = "\ue000"
)

// CrawlerConfig holds the settings for constructing a WebCrawler.
type CrawlerConfig struct {
	// MaxPages caps pages fetched per crawl, including the start page (default: 5).
	MaxPages int
	// RateLimit is the request rate in requests per second (default: 2).
	RateLimit float64
	// Timeout bounds each request (default: 30s).
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
	// OnPage is called with each URL before it is fetched.
	OnPage func(url string)
}

// WebCrawler fetches documentation pages directly and extracts their main
// content as plain text with paragraph breaks preserved. <pre> blocks are
// rendered as fenced code so example extraction still finds them. It is the
// crawl fallback when no Tavily key is configured and the fetcher used by
// ingestion. It is safe for concurrent use.
type WebCrawler struct {
	// cfg holds the resolved configuration.
	cfg CrawlerConfig
	// client performs requests.
	client *http.Client
	// limiter throttles requests across all crawls.
	limiter *rate.Limiter
}

// NewWebCrawler applies defaults to cfg and returns a WebCrawler.
func NewWebCrawler(cfg CrawlerConfig) *WebCrawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "libgen-go/1.0 (documentation crawler)"
	}
	return &WebCrawler{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// Name returns the tool name.
func (c *WebCrawler) Name() string { return "web_crawler" }

// Description returns the tool description.
func (c *WebCrawler) Description() string {
	return "Fetches a documentation page and same-site links and extracts their main text."
}

// Execute fetches in.URL and then up to MaxPages-1 same-host pages linked from
// it under the same path prefix. Only a failure on the start page is returned
// as an error; later failures are logged and skipped.
func (c *WebCrawler) Execute(ctx context.Context, in CrawlInput) (CrawlOutput, error) {
	log := logging.FromContext(ctx)

	start, err := url.Parse(in.URL)
	if err != nil || start.Host == "" {
		return CrawlOutput{}, collaboratorError(c.Name(), "parse url", fmt.Errorf("invalid url %q", in.URL))
	}

	first, links, err := c.fetchPage(ctx, start)
	if err != nil {
		return CrawlOutput{}, collaboratorError(c.Name(), "fetch "+in.URL, err)
	}

	out := CrawlOutput{}
	if first.Content != "" {
		out.Results = append(out.Results, first)
	}

	visited := map[string]bool{normalizeURL(start): true}
	prefix := pathPrefix(start.Path)
	for _, link := range links {
		if len(visited) >= c.cfg.MaxPages {
			break
		}
		key := normalizeURL(link)
		if visited[key] || link.Host != start.Host || !strings.HasPrefix(link.Path, prefix) {
			continue
		}
		visited[key] = true

		page, _, err := c.fetchPage(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("crawler: skipping page", slog.String("url", link.String()), slog.Any("error", err))
			continue
		}
		if page.Content != "" {
			out.Results = append(out.Results, page)
		}
	}

	log.Info("crawler: crawl complete", slog.String("url", in.URL), slog.Int("pages", len(out.Results)))
	return out, nil
}

// Fetch retrieves a single page and returns its extracted text.
func (c *WebCrawler) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("tools: parse url %q: %w", rawURL, err)
	}
	page, _, err := c.fetchPage(ctx, u)
	return page, err
}

// fetchPage GETs u and returns its extracted page and absolute outbound links.
func (c *WebCrawler) fetchPage(ctx context.Context, u *url.URL) (Page, []*url.URL, error) {
	if c.cfg.OnPage != nil {
		c.cfg.OnPage(u.String())
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Page{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain, text/markdown")

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, u)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Page{}, nil, fmt.Errorf("read body: %w", err)
		}
		return Page{URL: u.String(), Content: strings.TrimSpace(string(body))}, nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Page{}, nil, fmt.Errorf("parse html: %w", err)
	}

	links := extractLinks(doc, u)
	return Page{URL: u.String(), Content: ExtractText(doc)}, links, nil
}

// ExtractText returns the main content of doc as plain text. Block elements
// are separated by blank lines, whitespace inside them is collapsed, and <pre>
// blocks become fenced code with their layout kept. doc is modified.
func ExtractText(doc *goquery.Document) string {
	doc.Find(noiseElements).Remove()

	var code []string
	doc.Find("pre").Each(func(_ int, s *goquery.Selection) {
		code = append(code, strings.Trim(s.Text(), "\n"))
		s.ReplaceWithHtml(paraMark + codeMark + strconv.Itoa(len(code)-1) + paraMark)
	})
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(paraMark)
	})

	var content string
	for _, sel := range mainContentSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			content = found.First().Text()
			break
		}
	}
	if strings.TrimSpace(strings.ReplaceAll(content, paraMark, "")) == "" {
		content = doc.Find("body").Text()
	}

	var parts []string
	for _, seg := range strings.Split(content, paraMark) {
		seg = strings.Join(strings.Fields(seg), " ")
		if seg == "" {
			continue
		}
		if idx, ok := strings.CutPrefix(seg, codeMark); ok {
			if i, err := strconv.Atoi(idx); err == nil && i < len(code) {
				parts = append(parts, "```\n"+code[i]+"\n```")
				continue
			}
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "\n\n")
}

// extractLinks returns the absolute http(s) links in doc, resolved against base.
func extractLinks(doc *goquery.Document, base *url.URL) []*url.URL {
	var links []*url.URL
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		links = append(links, abs)
	})
	return links
}

// normalizeURL returns u without fragment or trailing slash for visit tracking.
func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	return strings.TrimRight(c.String(), "/")
}

// pathPrefix returns the directory portion of p, used to keep crawls inside
// one documentation tree.
func pathPrefix(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1]
	}
	return "/"
}
