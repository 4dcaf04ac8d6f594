package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// passTo returns a stage that requests next.
func passTo(next Stage) StageFunc {
	return func(_ context.Context, in State) (State, error) {
		out := in.Clone()
		out.NextAction = next
		return out, nil
	}
}

func linearNodes() map[Stage]StageFunc {
	nodes := make(map[Stage]StageFunc, len(Stages))
	for i, st := range Stages {
		next := StageEnd
		if i+1 < len(Stages) {
			next = Stages[i+1]
		}
		nodes[st] = passTo(next)
	}
	return nodes
}

func TestDefaultGraphIsValid(t *testing.T) {
	t.Parallel()
	if _, err := NewGraph(StageAnalyzeQuery, linearNodes(), DefaultEdges()); err != nil {
		t.Fatalf("NewGraph() = %v", err)
	}
}

func TestNewGraph_RejectsInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(nodes map[Stage]StageFunc, edges map[Stage]Edge)
		entry  Stage
		want   string
	}{
		{
			name:   "missing edge declaration",
			mutate: func(_ map[Stage]StageFunc, e map[Stage]Edge) { delete(e, StageManageContext) },
			want:   `stage "manage_context" declares no edges`,
		},
		{
			name: "dangling target",
			mutate: func(_ map[Stage]StageFunc, e map[Stage]Edge) {
				e[StageAnalyzeQuery] = Edge{Routes: map[Stage]Stage{StageEnd: StageEnd, StageSearchDocumentation: "summarize"}}
			},
			want: `targets unknown stage "summarize"`,
		},
		{
			name: "unknown route key",
			mutate: func(_ map[Stage]StageFunc, e map[Stage]Edge) {
				e[StageAnalyzeQuery].Routes["retry"] = StageSearchDocumentation
			},
			want: `route key "retry" is not a stage`,
		},
		{
			name:   "edges without node",
			mutate: func(n map[Stage]StageFunc, _ map[Stage]Edge) { delete(n, StageValidateCode) },
			want:   "without a node",
		},
		{
			name: "unreachable stage",
			mutate: func(_ map[Stage]StageFunc, e map[Stage]Edge) {
				e[StageManageContext] = Edge{Routes: map[Stage]Stage{StageEnd: StageEnd}}
			},
			want: `stage "generate_code" is unreachable`,
		},
		{
			name:   "entry without node",
			entry:  "start",
			mutate: func(map[Stage]StageFunc, map[Stage]Edge) {},
			want:   `entry stage "start" has no node`,
		},
		{
			name: "both routes and always",
			mutate: func(_ map[Stage]StageFunc, e map[Stage]Edge) {
				e[StageValidateCode] = Edge{Always: StageEnd, Routes: map[Stage]Stage{StageEnd: StageEnd}}
			},
			want: "both routes and an unconditional edge",
		},
		{
			name: "end unreachable",
			mutate: func(_ map[Stage]StageFunc, e map[Stage]Edge) {
				e[StageValidateCode] = Edge{Always: StageAnalyzeQuery}
				for st, edge := range e {
					delete(edge.Routes, StageEnd)
					e[st] = edge
				}
			},
			want: "end is unreachable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			nodes, edges := linearNodes(), DefaultEdges()
			tt.mutate(nodes, edges)
			entry := tt.entry
			if entry == "" {
				entry = StageAnalyzeQuery
			}
			_, err := NewGraph(entry, nodes, edges)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewGraph() error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestShouldContinue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		iteration int
		next      Stage
		want      Stage
	}{
		{"below cap follows request", 3, StageManageContext, StageManageContext},
		{"at cap ends", 10, StageManageContext, StageEnd},
		{"above cap ends", 12, StageGenerateCode, StageEnd},
		{"empty request is passed through", 0, "", ""},
		{"empty request at cap ends", 10, "", StageEnd},
	}
	for _, tt := range tests {
		st := State{IterationCount: tt.iteration, NextAction: tt.next}
		if got := ShouldContinue(st, 10); got != tt.want {
			t.Errorf("%s: ShouldContinue() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRun_VisitsStagesInOrder(t *testing.T) {
	t.Parallel()
	g, err := NewGraph(StageAnalyzeQuery, linearNodes(), DefaultEdges())
	if err != nil {
		t.Fatal(err)
	}

	var visited []Stage
	var iterations []int
	final, err := g.Run(context.Background(), NewState("lib", "task"), 10, func(s Stage, st State, _ time.Duration) {
		visited = append(visited, s)
		iterations = append(iterations, st.IterationCount)
	})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(visited) != len(Stages) {
		t.Fatalf("visited %v", visited)
	}
	for i := range Stages {
		if visited[i] != Stages[i] {
			t.Errorf("stage %d = %s, want %s", i, visited[i], Stages[i])
		}
		if iterations[i] != i+1 {
			t.Errorf("iteration after %s = %d, want %d", visited[i], iterations[i], i+1)
		}
	}
	if final.IterationCount != len(Stages) {
		t.Errorf("final IterationCount = %d", final.IterationCount)
	}
}

func TestRun_IterationCapStopsLoop(t *testing.T) {
	t.Parallel()
	nodes := map[Stage]StageFunc{
		StageAnalyzeQuery:        passTo(StageSearchDocumentation),
		StageSearchDocumentation: passTo(StageAnalyzeQuery),
	}
	edges := map[Stage]Edge{
		StageAnalyzeQuery:        {Routes: map[Stage]Stage{StageSearchDocumentation: StageSearchDocumentation, StageEnd: StageEnd}},
		StageSearchDocumentation: {Routes: map[Stage]Stage{StageAnalyzeQuery: StageAnalyzeQuery, StageEnd: StageEnd}},
	}
	g, err := NewGraph(StageAnalyzeQuery, nodes, edges)
	if err != nil {
		t.Fatal(err)
	}

	final, err := g.Run(context.Background(), NewState("lib", "task"), 5, nil)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if final.IterationCount != 5 {
		t.Errorf("IterationCount = %d, want 5", final.IterationCount)
	}
}

func TestRun_UndeclaredActionIsRoutingError(t *testing.T) {
	t.Parallel()
	nodes := linearNodes()
	nodes[StageCrawlDocumentation] = passTo(StageGenerateCode)
	g, err := NewGraph(StageAnalyzeQuery, nodes, DefaultEdges())
	if err != nil {
		t.Fatal(err)
	}

	_, err = g.Run(context.Background(), NewState("lib", "task"), 10, nil)
	if !errors.Is(err, ErrRouting) {
		t.Fatalf("Run() error = %v, want ErrRouting", err)
	}
	var re *RoutingError
	if !errors.As(err, &re) || re.Stage != StageCrawlDocumentation || re.Action != StageGenerateCode {
		t.Errorf("RoutingError = %+v", re)
	}
}

func TestRun_EmptyActionIsRoutingError(t *testing.T) {
	t.Parallel()
	nodes := linearNodes()
	nodes[StageExtractExamples] = passTo("")
	g, err := NewGraph(StageAnalyzeQuery, nodes, DefaultEdges())
	if err != nil {
		t.Fatal(err)
	}

	final, err := g.Run(context.Background(), NewState("lib", "task"), 10, nil)
	var re *RoutingError
	if !errors.As(err, &re) || re.Stage != StageExtractExamples || re.Action != "" {
		t.Fatalf("Run() error = %v, want RoutingError from extract_examples", err)
	}
	if final.IterationCount != 5 {
		t.Errorf("IterationCount = %d, want 5", final.IterationCount)
	}
}

func TestRun_StageErrorAborts(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	nodes := linearNodes()
	nodes[StageGenerateCode] = func(context.Context, State) (State, error) { return State{}, boom }
	g, _ := NewGraph(StageAnalyzeQuery, nodes, DefaultEdges())

	last, err := g.Run(context.Background(), NewState("lib", "task"), 10, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v", err)
	}
	if last.IterationCount != 6 {
		t.Errorf("last good IterationCount = %d, want 6", last.IterationCount)
	}
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()
	g, _ := NewGraph(StageAnalyzeQuery, linearNodes(), DefaultEdges())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Run(ctx, NewState("lib", "task"), 10, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
