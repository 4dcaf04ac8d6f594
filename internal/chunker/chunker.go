// Package chunker splits raw documentation and source code into bounded,
// overlapping segments suitable for embedding. Prose is split on paragraph
// boundaries first and only falls back to a sentence-aware sliding window when
// a single segment is still larger than the configured size.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the default maximum chunk length in characters.
	DefaultSize = 1000
	// DefaultOverlap is the default overlap between adjacent chunks in characters.
	DefaultOverlap = 200

	// codeSizeFactor is how far a structural code block may exceed Size before
	// it is re-split by the sliding window.
	codeSizeFactor = 1.5

	paragraphSep = "\n\n"
)

var (
	// paragraphBreak matches one or more blank lines, including lines that
	// contain only whitespace.
	paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n\s*`)

	// codeBoundary matches the start of a top-level definition line.
	codeBoundary = regexp.MustCompile(`(?m)^(?:def |class |async def |func |type )`)
)

// Chunker splits text into chunks no longer than Size characters. The zero
// value is not usable; construct with New.
type Chunker struct {
	// size is the maximum chunk length in characters.
	size int
	// overlap is the maximum number of characters shared by adjacent chunks.
	overlap int
}

// New returns a Chunker with the given size and overlap. A non-positive size
// selects DefaultSize. Overlap is clamped to [0, size).
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured maximum chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap length.
func (c *Chunker) Overlap() int { return c.overlap }

// ChunkText splits prose into chunks. Consecutive paragraphs are accumulated
// until the next one would push the working chunk past the size limit. When
// overlap is enabled and the emitted chunk held more than one paragraph, the
// next chunk is seeded with the last paragraph, provided that paragraph fits
// within the overlap length. Chunks that still exceed the size limit are
// re-split with splitBySize.
//
// The result is nil for blank input and never contains an empty string.
func (c *Chunker) ChunkText(text string) []string {
	var (
		chunks  []string
		current []string
		curLen  int
	)

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(current) > 0 && curLen+len(paragraphSep)+len(para) > c.size {
			chunks = append(chunks, strings.Join(current, paragraphSep))

			last := current[len(current)-1]
			if c.overlap > 0 && len(current) > 1 && len(last) <= c.overlap {
				current = []string{last, para}
				curLen = len(last) + len(paragraphSep) + len(para)
			} else {
				current = []string{para}
				curLen = len(para)
			}
			continue
		}

		if len(current) > 0 {
			curLen += len(paragraphSep)
		}
		current = append(current, para)
		curLen += len(para)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, paragraphSep))
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) > c.size {
			out = append(out, c.splitBySize(chunk)...)
			continue
		}
		out = append(out, chunk)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ChunkCode splits source code immediately before top-level definitions
// (def, class, async def, func, type). A block may reach 1.5x the size limit
// before it is re-split by the sliding window.
func (c *Chunker) ChunkCode(code string) []string {
	bounds := codeBoundary.FindAllStringIndex(code, -1)

	starts := make([]int, 0, len(bounds)+1)
	starts = append(starts, 0)
	for _, b := range bounds {
		if b[0] > 0 {
			starts = append(starts, b[0])
		}
	}

	limit := int(float64(c.size) * codeSizeFactor)

	var out []string
	for i, start := range starts {
		end := len(code)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		block := strings.TrimSpace(code[start:end])
		if block == "" {
			continue
		}
		if len(block) > limit {
			out = append(out, c.splitBySize(block)...)
			continue
		}
		out = append(out, block)
	}
	return out
}

// splitBySize cuts text into windows of at most size characters. Each window
// ends at the last sentence terminator inside it when one exists after the
// window start, otherwise at a hard cut. Successive windows start overlap
// characters before the previous window's end.
func (c *Chunker) splitBySize(text string) []string {
	var out []string

	start := 0
	for start < len(text) {
		end := runeFloor(text, min(start+c.size, len(text)))
		if end <= start {
			end = min(start+c.size, len(text))
		}
		if end < len(text) {
			if pos := strings.LastIndexAny(text[start:end], ".!?"); pos > 0 {
				end = start + pos + 1
			}
		}

		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			out = append(out, piece)
		}

		if end >= len(text) {
			break
		}
		next := runeFloor(text, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// runeFloor moves i back to the nearest rune boundary so a cut never splits
// a multi-byte character.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
