package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"generate", "ingest", "context", "serve", "mcp", "history", "version"}
	for _, name := range want {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	if !strings.HasPrefix(out.String(), "libgen dev") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestGenerateCmd_RequiresLibraryAndTask(t *testing.T) {
	cmd := NewGenerateCmd()
	if err := cmd.Args(cmd, []string{"httpx"}); err == nil {
		t.Error("generate with only a library should fail argument validation")
	}
	if err := cmd.Args(cmd, []string{"httpx", "fetch", "a", "page"}); err != nil {
		t.Errorf("generate args = %v", err)
	}
}

func TestContextClear_RequiresYes(t *testing.T) {
	cmd := newContextClearCmd()
	err := cmd.RunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("clear without --yes = %v", err)
	}
}

func TestOneLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short task", 20, "short task"},
		{"multi\n  line\ttask", 20, "multi line task"},
		{"abcdefghij", 5, "abcd…"},
	}
	for _, tc := range cases {
		if got := oneLine(tc.in, tc.max); got != tc.want {
			t.Errorf("oneLine(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
