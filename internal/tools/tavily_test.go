package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewTavilyClient_RequiresKey(t *testing.T) {
	t.Parallel()
	if _, err := NewTavilyClient(TavilyConfig{}); err == nil {
		t.Error("NewTavilyClient() without key should fail")
	}
}

func TestSearchQuery(t *testing.T) {
	t.Parallel()
	if got := SearchQuery("httpx", ""); got != "httpx documentation tutorial" {
		t.Errorf("SearchQuery() = %q", got)
	}
	if got := SearchQuery("httpx", " async client "); got != "httpx documentation tutorial async client" {
		t.Errorf("SearchQuery() = %q", got)
	}
}

func TestTavilySearch(t *testing.T) {
	t.Parallel()
	reqs := make(chan tavilySearchRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Header.Get("Authorization") != "Bearer tvly-test" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var req tavilySearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reqs <- req
		_, _ = w.Write([]byte(`{"results":[{"title":"HTTPX","url":"https://www.python-httpx.org/","content":"A next-generation HTTP client.","score":0.9}]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewTavilyClient(TavilyConfig{APIKey: "tvly-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewTavilyClient() = %v", err)
	}
	tool := NewTavilySearch(client)

	got, err := tool.Execute(context.Background(), SearchInput{Library: "httpx", Task: "retry requests"})
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://www.python-httpx.org/" {
		t.Errorf("Execute() = %+v", got)
	}

	req := <-reqs
	if req.Query != "httpx documentation tutorial retry requests" || req.MaxResults != 5 || req.SearchDepth != "advanced" {
		t.Errorf("request = %+v", req)
	}
}

func TestTavilyCrawl_DropsEmptyPages(t *testing.T) {
	t.Parallel()
	reqs := make(chan tavilyCrawlRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyCrawlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reqs <- req
		_, _ = w.Write([]byte(`{"results":[{"url":"https://a/1","raw_content":"Quickstart text"},{"url":"https://a/2","raw_content":"  "}]}`))
	}))
	t.Cleanup(srv.Close)

	client, _ := NewTavilyClient(TavilyConfig{APIKey: "k", BaseURL: srv.URL})
	got, err := NewTavilyCrawl(client).Execute(context.Background(), CrawlInput{URL: "https://a/", Instructions: "extract API docs"})
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].Content != "Quickstart text" {
		t.Errorf("Execute() = %+v", got)
	}
	if req := <-reqs; req.MaxBreadth != 20 || req.Instructions != "extract API docs" {
		t.Errorf("request = %+v", req)
	}
}

func TestTavily_ErrorIsCollaboratorError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client, _ := NewTavilyClient(TavilyConfig{APIKey: "bad", BaseURL: srv.URL})
	_, err := client.Search(context.Background(), SearchInput{Library: "x"})
	if !errors.Is(err, ErrCollaborator) {
		t.Errorf("Search() error = %v, want ErrCollaborator", err)
	}
}
