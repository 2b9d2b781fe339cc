package rules

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"archcheck/internal/graph"

	"golang.org/x/sync/errgroup"
)

// Rule states that the nodes selected by Scope should satisfy Condition.
type Rule struct {
	Name      string
	Scope     NodePredicate
	Condition Condition
	Reason    string
}

// Description renders the rule as a sentence.
func (r Rule) Description() string {
	desc := fmt.Sprintf("classes that %s should %s", r.Scope.Description(), r.Condition.Description())
	if r.Reason != "" {
		desc += ", because " + r.Reason
	}
	return desc
}

// Violation is one failure of a rule.
type Violation struct {
	Description string
	Line        int
	Dependency  *graph.Dependency
	Node        *graph.Node
}

// Result is the outcome of evaluating one rule.
type Result struct {
	Rule        string
	Description string
	Checked     int
	Violations  []Violation
}

func (r Result) Passed() bool {
	return len(r.Violations) == 0
}

// Report renders the result for display, one violation per line.
func (r Result) Report() string {
	var b strings.Builder
	if r.Passed() {
		fmt.Fprintf(&b, "Rule '%s' passed (%d classes checked)\n", r.Description, r.Checked)
		return b.String()
	}
	fmt.Fprintf(&b, "Rule '%s' was violated (%d times):\n", r.Description, len(r.Violations))
	for _, v := range r.Violations {
		b.WriteString(v.Description)
		b.WriteByte('\n')
	}
	return b.String()
}

// Evaluate applies the scope, checks every selected node and collects the
// violated events in (line, description) order. It only reads g.
func (r Rule) Evaluate(g *graph.Graph) Result {
	in := &Input{Graph: g}
	for _, n := range g.Nodes() {
		if r.Scope.Test(g, n) {
			in.Scope = append(in.Scope, n)
		}
	}

	res := Result{Rule: r.Name, Description: r.Description(), Checked: len(in.Scope)}
	if res.Rule == "" {
		res.Rule = res.Description
	}
	for _, n := range in.Scope {
		for _, e := range r.Condition.Check(in, n) {
			if !e.Violated {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Description: e.Description,
				Line:        e.Line,
				Dependency:  e.Dependency,
				Node:        e.Node,
			})
		}
	}
	slices.SortStableFunc(res.Violations, func(a, b Violation) int {
		if c := cmp.Compare(a.Line, b.Line); c != 0 {
			return c
		}
		return strings.Compare(a.Description, b.Description)
	})
	return res
}

// EvaluateAll evaluates rules in parallel against the same graph and
// returns the results in rule order.
func EvaluateAll(ctx context.Context, g *graph.Graph, rules ...Rule) ([]Result, error) {
	results := make([]Result, len(rules))
	eg, ctx := errgroup.WithContext(ctx)
	for i, r := range rules {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.Evaluate(g)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
