package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel returns a canned reply and records the last input.
type fakeChatModel struct {
	mu    sync.Mutex
	reply string
	err   error
	got   []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) lastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

func TestNew_RequiresModel(t *testing.T) {
	t.Parallel()
	if _, err := New(&Config{}); err == nil {
		t.Error("New() with nil model should fail")
	}
	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	fake := &fakeChatModel{reply: "import requests"}
	c, err := New(&Config{ChatModel: fake})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	got, err := c.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if got != "import requests" {
		t.Errorf("Generate() = %q", got)
	}
}

func TestGenerate_WrapsModelError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	c, _ := New(&Config{ChatModel: &fakeChatModel{err: boom}})

	_, err := c.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if !errors.Is(err, boom) {
		t.Errorf("Generate() error = %v, want wrapped %v", err, boom)
	}
}

func TestGenerateJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply string
		want  map[string]any
	}{
		{"bare object", `{"search_query":"requests retry"}`, map[string]any{"search_query": "requests retry"}},
		{"wrapped in prose", "Sure:\n```json\n{\"needs_documentation\": true}\n```\nDone.", map[string]any{"needs_documentation": true}},
		{"no object", "I cannot help with that.", map[string]any{}},
		{"malformed", "{not json}", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := New(&Config{ChatModel: &fakeChatModel{reply: tt.reply}})
			got, err := c.GenerateJSON(context.Background(), []*schema.Message{schema.UserMessage("q")})
			if err != nil {
				t.Fatalf("GenerateJSON() = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("GenerateJSON() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("GenerateJSON()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestGenerateJSON_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	fake := &fakeChatModel{reply: "{}"}
	c, _ := New(&Config{ChatModel: fake})

	msgs := []*schema.Message{schema.SystemMessage("sys"), schema.UserMessage("analyze")}
	if _, err := c.GenerateJSON(context.Background(), msgs); err != nil {
		t.Fatalf("GenerateJSON() = %v", err)
	}

	if msgs[1].Content != "analyze" {
		t.Errorf("caller message mutated: %q", msgs[1].Content)
	}
	sent := fake.lastInput()
	if !strings.HasSuffix(sent[1].Content, "Respond with valid JSON only.") {
		t.Errorf("sent message missing JSON instruction: %q", sent[1].Content)
	}
	if sent[0].Content != "sys" {
		t.Errorf("system message changed: %q", sent[0].Content)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()
	if _, err := ExtractJSON("no braces"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("ExtractJSON() error = %v, want ErrNoJSON", err)
	}
	if _, err := ExtractJSON("} backwards {"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("ExtractJSON() error = %v, want ErrNoJSON", err)
	}
	if _, err := ExtractJSON("{bad}"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("ExtractJSON() error = %v, want ErrNoJSON", err)
	}
	got, err := ExtractJSON(`prefix {"a": {"b": 1}} suffix`)
	if err != nil {
		t.Fatalf("ExtractJSON() = %v", err)
	}
	if _, ok := got["a"].(map[string]any); !ok {
		t.Errorf("nested object lost: %v", got)
	}
}
