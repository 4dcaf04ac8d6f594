// Package workflow implements the staged code-generation workflow: a fixed,
// validated graph of stages that gathers documentation, repository material,
// and examples, indexes them as retrievable context, and generates and scores
// code for a library task.
package workflow

// Stage identifies one step of the workflow graph.
type Stage string

// The closed set of workflow stages. StageEnd is the terminal pseudo-stage.
const (
	StageAnalyzeQuery        Stage = "analyze_query"
	StageSearchDocumentation Stage = "search_documentation"
	StageCrawlDocumentation  Stage = "crawl_documentation"
	StageAnalyzeGitHub       Stage = "analyze_github"
	StageExtractExamples     Stage = "extract_examples"
	StageManageContext       Stage = "manage_context"
	StageGenerateCode        Stage = "generate_code"
	StageValidateCode        Stage = "validate_code"
	StageEnd                 Stage = "end"
)

// Stages lists every non-terminal stage in execution order.
var Stages = []Stage{
	StageAnalyzeQuery,
	StageSearchDocumentation,
	StageCrawlDocumentation,
	StageAnalyzeGitHub,
	StageExtractExamples,
	StageManageContext,
	StageGenerateCode,
	StageValidateCode,
}

// Valid reports whether s is a known stage or StageEnd.
func (s Stage) Valid() bool {
	if s == StageEnd {
		return true
	}
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the stage name.
func (s Stage) String() string { return string(s) }
