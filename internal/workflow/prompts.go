package workflow

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/libgen-go/internal/llm"
	"github.com/54b3r/libgen-go/internal/rag"
)

// analysisSystemPrompt frames the query analysis call.
const analysisSystemPrompt = `You are an expert at analysing code generation requests for libraries you may
not know well. Decide what information is needed to write correct code for the
request: official documentation, API references, working code examples, and the
library's source repository.`

// analysisUserTemplate is filled with the library and task.
const analysisUserTemplate = `Library: %s
Task: %s

What information should we gather? Respond with a JSON object containing:
- needs_documentation: bool
- needs_github_analysis: bool
- needs_code_examples: bool
- search_query: string (a short search query for the library's documentation)`

// generationSystemTemplate is filled with the target language.
const generationSystemTemplate = `You are an expert %[1]s developer. Generate clean, working %[1]s code based on
the documentation and examples provided. Use only APIs that appear in the
provided material or that you are certain exist in the library. Include error
handling and brief comments where the intent is not obvious.`

// generationUserTemplate is filled with the library, task, context, and
// language.
const generationUserTemplate = `Library: %s
Task: %s

Available documentation and examples:
%s

Generate %s code that accomplishes the task. Include:
1. Required imports
2. The main implementation
3. Example usage
4. A brief explanation of how it works`

// noContextNotice replaces the context block when nothing was retrieved.
const noContextNotice = "(none found; rely on your knowledge of the library and say which parts are uncertain)"

// analysisMessages builds the query analysis prompt.
func analysisMessages(library, task string) []*schema.Message {
	return []*schema.Message{
		schema.SystemMessage(analysisSystemPrompt),
		schema.UserMessage(fmt.Sprintf(analysisUserTemplate, library, task)),
	}
}

// generationMessages builds the code generation prompt.
func generationMessages(language, library, task string, chunks []rag.ContextChunk) []*schema.Message {
	ctxText := llm.FormatContext(chunks)
	if ctxText == "" {
		ctxText = noContextNotice
	}
	return []*schema.Message{
		schema.SystemMessage(fmt.Sprintf(generationSystemTemplate, language)),
		schema.UserMessage(fmt.Sprintf(generationUserTemplate, library, task, ctxText, language)),
	}
}

// searchTask returns the analysed search query when the model produced one,
// otherwise the user's task.
func searchTask(analysis map[string]any, task string) string {
	if q, ok := analysis["search_query"].(string); ok && strings.TrimSpace(q) != "" {
		return strings.TrimSpace(q)
	}
	return task
}
