package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/libgen-go/internal/logging"
)

// StageFunc executes one stage. It returns the successor state, which must
// not share mutable data with in. A returned error aborts the run.
type StageFunc func(ctx context.Context, in State) (State, error)

// Edge declares the transitions out of a stage. Exactly one of Routes or
// Always is set.
type Edge struct {
	// Routes maps a requested next action to the successor stage.
	Routes map[Stage]Stage
	// Always is the unconditional successor.
	Always Stage
}

// Observer is called after every executed stage with the stage, the state it
// produced, and how long it took.
type Observer func(stage Stage, st State, elapsed time.Duration)

// Graph is a validated stage graph. It is immutable and safe for concurrent
// runs.
type Graph struct {
	// entry is the first stage of every run.
	entry Stage
	// nodes maps each stage to its implementation.
	nodes map[Stage]StageFunc
	// edges maps each stage to its declared transitions.
	edges map[Stage]Edge
}

// NewGraph validates the stage graph. Every stage with a node must declare
// edges and every edge source must have a node. Targets must be known stages
// with nodes or StageEnd. Every node must be reachable from entry and StageEnd
// must be reachable.
func NewGraph(entry Stage, nodes map[Stage]StageFunc, edges map[Stage]Edge) (*Graph, error) {
	var errs []error

	if _, ok := nodes[entry]; !ok {
		errs = append(errs, fmt.Errorf("entry stage %q has no node", entry))
	}
	for st, fn := range nodes {
		switch {
		case !st.Valid() || st == StageEnd:
			errs = append(errs, fmt.Errorf("node %q is not a workflow stage", st))
		case fn == nil:
			errs = append(errs, fmt.Errorf("node %q is nil", st))
		}
		if _, ok := edges[st]; !ok {
			errs = append(errs, fmt.Errorf("stage %q declares no edges", st))
		}
	}

	hasNode := func(s Stage) bool {
		_, ok := nodes[s]
		return ok || s == StageEnd
	}
	for from, e := range edges {
		if _, ok := nodes[from]; !ok {
			errs = append(errs, fmt.Errorf("edges declared for stage %q without a node", from))
		}
		switch {
		case e.Always != "" && len(e.Routes) > 0:
			errs = append(errs, fmt.Errorf("stage %q declares both routes and an unconditional edge", from))
		case e.Always == "" && len(e.Routes) == 0:
			errs = append(errs, fmt.Errorf("stage %q declares an empty edge", from))
		case e.Always != "" && !hasNode(e.Always):
			errs = append(errs, fmt.Errorf("stage %q: unconditional target %q is unknown", from, e.Always))
		}
		for action, to := range e.Routes {
			if !action.Valid() {
				errs = append(errs, fmt.Errorf("stage %q: route key %q is not a stage", from, action))
			}
			if !hasNode(to) {
				errs = append(errs, fmt.Errorf("stage %q: route %q targets unknown stage %q", from, action, to))
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("workflow: invalid graph: %w", errors.Join(errs...))
	}

	g := &Graph{entry: entry, nodes: nodes, edges: edges}
	if err := g.checkReachability(); err != nil {
		return nil, fmt.Errorf("workflow: invalid graph: %w", err)
	}
	return g, nil
}

// successors returns every stage reachable in one step from s.
func (g *Graph) successors(s Stage) []Stage {
	e := g.edges[s]
	if e.Always != "" {
		return []Stage{e.Always}
	}
	out := make([]Stage, 0, len(e.Routes))
	for _, to := range e.Routes {
		out = append(out, to)
	}
	return out
}

// checkReachability verifies that every node and StageEnd are reachable
// from the entry stage.
func (g *Graph) checkReachability() error {
	seen := map[Stage]bool{g.entry: true}
	queue := []Stage{g.entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == StageEnd {
			continue
		}
		for _, next := range g.successors(cur) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	var errs []error
	for st := range g.nodes {
		if !seen[st] {
			errs = append(errs, fmt.Errorf("stage %q is unreachable from %q", st, g.entry))
		}
	}
	if !seen[StageEnd] {
		errs = append(errs, errors.New("end is unreachable"))
	}
	return errors.Join(errs...)
}

// Next resolves the successor of from given the requested action. An
// undeclared action is a *RoutingError.
func (g *Graph) Next(from, action Stage) (Stage, error) {
	e, ok := g.edges[from]
	if !ok {
		return "", &RoutingError{Stage: from, Action: action}
	}
	if e.Always != "" {
		return e.Always, nil
	}
	to, ok := e.Routes[action]
	if !ok {
		return "", &RoutingError{Stage: from, Action: action}
	}
	return to, nil
}

// Run executes stages from the entry stage until StageEnd. IterationCount is
// incremented after every stage. Once it reaches maxIterations the run ends
// regardless of the requested action. A stage error or routing error aborts
// the run and is returned with the last good state.
func (g *Graph) Run(ctx context.Context, st State, maxIterations int, observe Observer) (State, error) {
	log := logging.FromContext(ctx)

	cur := g.entry
	for cur != StageEnd {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("workflow: run cancelled before %s: %w", cur, err)
		}

		log.Debug("workflow: entering stage", slog.String("stage", cur.String()), slog.Int("iteration", st.IterationCount))
		started := time.Now()
		next, err := g.nodes[cur](ctx, st)
		elapsed := time.Since(started)
		if err != nil {
			return st, fmt.Errorf("workflow: stage %s: %w", cur, err)
		}
		next.IterationCount = st.IterationCount + 1
		st = next

		if observe != nil {
			observe(cur, st, elapsed)
		}

		action := ShouldContinue(st, maxIterations)
		if action == StageEnd && st.IterationCount >= maxIterations && st.NextAction != StageEnd {
			log.Warn("workflow: iteration limit reached",
				slog.String("stage", cur.String()),
				slog.String("requested", st.NextAction.String()),
				slog.Int("max_iterations", maxIterations),
			)
			break
		}

		to, err := g.Next(cur, action)
		if err != nil {
			return st, err
		}
		cur = to
	}
	return st, nil
}
