package chunker

import (
	"strings"
	"testing"
)

func Test_New_Defaults(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		size        int
		overlap     int
		wantSize    int
		wantOverlap int
	}{
		{"zero size selects default", 0, 0, DefaultSize, 0},
		{"negative overlap clamped", 100, -5, 100, 0},
		{"overlap clamped below size", 100, 150, 100, 99},
		{"values kept", 500, 50, 500, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := New(tc.size, tc.overlap)
			if c.Size() != tc.wantSize || c.Overlap() != tc.wantOverlap {
				t.Errorf("New(%d, %d) = size %d overlap %d, want %d/%d",
					tc.size, tc.overlap, c.Size(), c.Overlap(), tc.wantSize, tc.wantOverlap)
			}
		})
	}
}

func Test_ChunkText_Blank(t *testing.T) {
	t.Parallel()
	c := New(100, 20)
	for _, in := range []string{"", "   ", "\n\n\n", " \n \n\t"} {
		if got := c.ChunkText(in); got != nil {
			t.Errorf("ChunkText(%q) = %q, want nil", in, got)
		}
	}
}

func Test_ChunkText_SingleParagraph(t *testing.T) {
	t.Parallel()
	c := New(100, 20)
	got := c.ChunkText("  A short paragraph.  ")
	if len(got) != 1 || got[0] != "A short paragraph." {
		t.Errorf("got %q, want one trimmed chunk", got)
	}
}

func Test_ChunkText_OverlapSeedsLastParagraph(t *testing.T) {
	t.Parallel()
	p1 := "First paragraph text here."
	p2 := "Short tail."
	p3 := strings.Repeat("g", 70)
	text := p1 + "\n\n" + p2 + "\n\n\n" + p3

	c := New(100, 20)
	got := c.ChunkText(text)
	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != p1+"\n\n"+p2 {
		t.Errorf("chunk[0] = %q", got[0])
	}
	if !strings.HasPrefix(got[1], p2) {
		t.Errorf("chunk[1] should begin with previous chunk's last paragraph, got %q", got[1])
	}
	if !strings.HasSuffix(got[1], p3) {
		t.Errorf("chunk[1] should end with the new paragraph, got %q", got[1])
	}
	for i, chunk := range got {
		if len(chunk) > 100 {
			t.Errorf("chunk[%d] length %d exceeds size", i, len(chunk))
		}
	}
}

func Test_ChunkText_NoOverlapWhenDisabled(t *testing.T) {
	t.Parallel()
	p1 := "First paragraph text here."
	p2 := "Short tail."
	p3 := strings.Repeat("g", 70)
	c := New(100, 0)
	got := c.ChunkText(p1 + "\n\n" + p2 + "\n\n" + p3)
	if len(got) != 2 {
		t.Fatalf("want 2 chunks, got %d: %q", len(got), got)
	}
	if got[1] != p3 {
		t.Errorf("chunk[1] = %q, want %q", got[1], p3)
	}
}

func Test_ChunkText_LongParagraphFallsBackToWindow(t *testing.T) {
	t.Parallel()
	sentence := "This sentence is exactly forty chars ok. "
	text := strings.Repeat(sentence, 8)

	c := New(100, 20)
	got := c.ChunkText(text)
	if len(got) < 3 {
		t.Fatalf("want at least 3 chunks, got %d", len(got))
	}
	for i, chunk := range got {
		if chunk == "" {
			t.Errorf("chunk[%d] is empty", i)
		}
		if len(chunk) > 100 {
			t.Errorf("chunk[%d] length %d exceeds size", i, len(chunk))
		}
	}
	if !strings.HasSuffix(got[0], ".") {
		t.Errorf("first window should end on a sentence boundary, got %q", got[0])
	}
}

func Test_ChunkText_CoversAllParagraphs(t *testing.T) {
	t.Parallel()
	paras := []string{
		"Install the package with pip.",
		"Import the client and create a session.",
		"Call fetch with a URL to download a page.",
		"Errors are raised as exceptions with a status code.",
		"Close the session when finished.",
	}
	c := New(80, 10)
	got := c.ChunkText(strings.Join(paras, "\n\n"))
	joined := strings.Join(got, "\n")
	for _, p := range paras {
		if !strings.Contains(joined, p) {
			t.Errorf("paragraph %q missing from output", p)
		}
	}
}

func Test_SplitBySize_HardCut(t *testing.T) {
	t.Parallel()
	c := New(100, 20)
	got := c.splitBySize(strings.Repeat("x", 250))
	want := []int{100, 100, 90}
	if len(got) != len(want) {
		t.Fatalf("want %d windows, got %d", len(want), len(got))
	}
	for i, n := range want {
		if len(got[i]) != n {
			t.Errorf("window[%d] length = %d, want %d", i, len(got[i]), n)
		}
	}
}

func Test_SplitBySize_SentenceBoundary(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("word ", 15) + "end. " + strings.Repeat("z", 60)
	c := New(100, 20)
	got := c.splitBySize(text)
	if len(got) < 2 {
		t.Fatalf("want at least 2 windows, got %d", len(got))
	}
	if !strings.HasSuffix(got[0], "end.") {
		t.Errorf("window[0] = %q, want cut after the terminator", got[0])
	}
}

func Test_SplitBySize_MultiByteSafe(t *testing.T) {
	t.Parallel()
	c := New(10, 3)
	for i, chunk := range c.splitBySize(strings.Repeat("é", 40)) {
		if !strings.HasPrefix(chunk, "é") || strings.ContainsRune(chunk, '�') {
			t.Errorf("window[%d] split a rune: %q", i, chunk)
		}
	}
}

func Test_ChunkCode_SplitsOnDefinitions(t *testing.T) {
	t.Parallel()
	code := `import requests

def fetch(url):
    return requests.get(url)

class Client:
    pass

async def main():
    await run()
`
	c := New(1000, 100)
	got := c.ChunkCode(code)
	if len(got) != 4 {
		t.Fatalf("want 4 blocks, got %d: %q", len(got), got)
	}
	prefixes := []string{"import requests", "def fetch", "class Client", "async def main"}
	for i, p := range prefixes {
		if !strings.HasPrefix(got[i], p) {
			t.Errorf("block[%d] = %q, want prefix %q", i, got[i], p)
		}
	}
}

func Test_ChunkCode_GoDefinitions(t *testing.T) {
	t.Parallel()
	code := "package x\n\ntype A struct{}\n\nfunc F() {}\n"
	got := New(1000, 0).ChunkCode(code)
	if len(got) != 3 {
		t.Fatalf("want 3 blocks, got %d: %q", len(got), got)
	}
}

func Test_ChunkCode_AllowsOneAndAHalfSize(t *testing.T) {
	t.Parallel()
	c := New(100, 10)

	block := "def f():\n" + strings.Repeat("a", 130)
	if got := c.ChunkCode(block); len(got) != 1 {
		t.Errorf("block of %d chars should stay whole, got %d chunks", len(block), len(got))
	}

	big := "def g():\n" + strings.Repeat("b", 200)
	got := c.ChunkCode(big)
	if len(got) < 2 {
		t.Fatalf("block of %d chars should be re-split, got %d chunks", len(big), len(got))
	}
	for i, chunk := range got {
		if len(chunk) > 100 {
			t.Errorf("chunk[%d] length %d exceeds size", i, len(chunk))
		}
	}
}
