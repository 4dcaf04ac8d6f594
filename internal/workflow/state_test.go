package workflow

import (
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/libgen-go/internal/tools"
)

func TestNewState(t *testing.T) {
	t.Parallel()
	st := NewState("  requests ", " fetch a page ")
	if st.LibraryName != "requests" || st.Task != "fetch a page" {
		t.Errorf("NewState() = %+v", st)
	}
	if st.NextAction != StageAnalyzeQuery || st.IterationCount != 0 || st.ConfidenceScore != 0 {
		t.Errorf("NewState() initial fields = %+v", st)
	}
}

func TestClone_SharesNoMutableData(t *testing.T) {
	t.Parallel()
	orig := State{
		Messages:             []*schema.Message{schema.UserMessage("q")},
		Analysis:             map[string]any{"search_query": "x"},
		SearchResults:        []tools.SearchResult{{URL: "https://a"}},
		CrawledDocumentation: &tools.CrawlOutput{Results: []tools.Page{{URL: "https://a", Content: "c"}}},
		GitHubInfo:           &tools.RepoInfo{Found: true, Structure: &tools.RepoStructure{Files: []string{"docs"}}},
		CodeExamples:         []string{"ex"},
		Warnings:             []string{"w"},
	}

	c := orig.Clone()
	c.Messages[0] = schema.UserMessage("changed")
	c.Analysis["search_query"] = "y"
	c.SearchResults[0].URL = "https://b"
	c.CrawledDocumentation.Results[0].Content = "changed"
	c.GitHubInfo.Found = false
	c.GitHubInfo.Structure.Files[0] = "src"
	c.CodeExamples[0] = "changed"
	c = c.warn("second")

	if orig.Messages[0].Content != "q" ||
		orig.Analysis["search_query"] != "x" ||
		orig.SearchResults[0].URL != "https://a" ||
		orig.CrawledDocumentation.Results[0].Content != "c" ||
		!orig.GitHubInfo.Found ||
		orig.GitHubInfo.Structure.Files[0] != "docs" ||
		orig.CodeExamples[0] != "ex" ||
		len(orig.Warnings) != 1 {
		t.Errorf("original state was modified through clone: %+v", orig)
	}
}

func TestScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code, library string
		want          float64
		wantMsg       bool
	}{
		{"import Requests\nrequests.get(u)", "requests", 0.8, false},
		{"import httpx", "HTTPX", 0.8, false},
		{"import urllib.request", "requests", 0.3, true},
		{"", "requests", 0.3, true},
	}
	for _, tt := range tests {
		got, msg := Score(tt.code, tt.library)
		if got != tt.want || (msg != "") != tt.wantMsg {
			t.Errorf("Score(%q, %q) = %v, %q", tt.code, tt.library, got, msg)
		}
	}
}
