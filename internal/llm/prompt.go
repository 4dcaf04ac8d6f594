package llm

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/libgen-go/internal/rag"
)

// maxSectionChars caps how much of one retrieved chunk is shown to the model.
const maxSectionChars = 4000

// fence matches a markdown code fence line with an optional language tag.
var fence = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+.-]*[ \t]*$")

// FormatContext renders retrieved chunks as numbered sections for the
// generation prompt. It returns an empty string when chunks is empty.
func FormatContext(chunks []rag.ContextChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, c := range chunks {
		text := c.Text
		if len(text) > maxSectionChars {
			cut := maxSectionChars
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut] + "\n..."
		}
		fmt.Fprintf(&sb, "### Source %d: %s (%s)\n%s\n\n", i+1, c.Source, c.Type, text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// CleanCode strips markdown fence lines and trailing whitespace from a
// completion so it can be written to a source file. Prose outside fences is
// kept.
func CleanCode(s string) string {
	s = fence.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n") + "\n"
}
