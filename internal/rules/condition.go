package rules

import (
	"fmt"
	"strings"

	"archcheck/internal/analysis"
	"archcheck/internal/graph"
	"archcheck/internal/retrieval"
	"archcheck/internal/tree"
)

// Event is one finding of a condition for one node: a dependency or the
// node itself either violates or satisfies the condition.
type Event struct {
	Violated    bool
	Description string
	Line        int
	Dependency  *graph.Dependency
	Node        *graph.Node
}

// Input is what a condition sees during one rule evaluation. It is owned by
// a single evaluation and never shared between goroutines.
type Input struct {
	Graph *graph.Graph
	Scope []*graph.Node

	memo map[any]any
}

// Memo returns the value cached under key, computing it on first use.
func (in *Input) Memo(key any, compute func() any) any {
	if in.memo == nil {
		in.memo = make(map[any]any)
	}
	if v, ok := in.memo[key]; ok {
		return v
	}
	v := compute()
	in.memo[key] = v
	return v
}

// Condition checks one selected node.
type Condition interface {
	Description() string
	Check(in *Input, n *graph.Node) []Event
}

type condition struct {
	desc  string
	check func(in *Input, n *graph.Node) []Event
}

func (c condition) Description() string                    { return c.desc }
func (c condition) Check(in *Input, n *graph.Node) []Event { return c.check(in, n) }

// NewCondition wraps a check function.
func NewCondition(desc string, check func(in *Input, n *graph.Node) []Event) Condition {
	return condition{desc: desc, check: check}
}

func dependencyEvent(d *graph.Dependency, violated bool) Event {
	return Event{
		Violated:    violated,
		Description: d.Description(),
		Line:        d.Line(),
		Dependency:  d,
		Node:        d.Origin,
	}
}

func nodeEvent(n *graph.Node, violated bool, format string, args ...any) Event {
	return Event{Violated: violated, Description: fmt.Sprintf(format, args...), Node: n}
}

// NotDependOn is violated by every dependency of the node on a class
// selected by target. Self-references are ignored.
func NotDependOn(target NodePredicate) Condition {
	return NewCondition("not depend on classes that "+target.desc, func(in *Input, n *graph.Node) []Event {
		var events []Event
		for _, d := range in.Graph.DependenciesFrom(n.Name) {
			if d.Target == n {
				continue
			}
			events = append(events, dependencyEvent(d, target.Test(in.Graph, d.Target)))
		}
		return events
	})
}

// OnlyDependOn is violated by every dependency on a class outside allowed.
func OnlyDependOn(allowed NodePredicate) Condition {
	return NewCondition("only depend on classes that "+allowed.desc, func(in *Input, n *graph.Node) []Event {
		var events []Event
		for _, d := range in.Graph.DependenciesFrom(n.Name) {
			if d.Target == n {
				continue
			}
			events = append(events, dependencyEvent(d, !allowed.Test(in.Graph, d.Target)))
		}
		return events
	})
}

// NotBeAccessedBy is violated by every access to the node from a class
// selected by origin.
func NotBeAccessedBy(origin NodePredicate) Condition {
	return NewCondition("not be accessed by classes that "+origin.desc, func(in *Input, n *graph.Node) []Event {
		var events []Event
		for _, d := range in.Graph.DependenciesTo(n.Name) {
			if d.Origin == n {
				continue
			}
			events = append(events, dependencyEvent(d, origin.Test(in.Graph, d.Origin)))
		}
		return events
	})
}

// OnlyBeAccessedBy is violated by every access from a class outside allowed.
func OnlyBeAccessedBy(allowed NodePredicate) Condition {
	return NewCondition("only be accessed by classes that "+allowed.desc, func(in *Input, n *graph.Node) []Event {
		var events []Event
		for _, d := range in.Graph.DependenciesTo(n.Name) {
			if d.Origin == n {
				continue
			}
			events = append(events, dependencyEvent(d, !allowed.Test(in.Graph, d.Origin)))
		}
		return events
	})
}

// HaveNameMatching checks the node's own name.
func HaveNameMatching(pattern string) Condition {
	re := tree.CompilePattern(pattern)
	return NewCondition(fmt.Sprintf("have name matching '%s'", pattern), func(_ *Input, n *graph.Node) []Event {
		if re.MatchString(n.Name) {
			return []Event{nodeEvent(n, false, "Class <%s> has name matching '%s'", n.Name, pattern)}
		}
		return []Event{nodeEvent(n, true, "Class <%s> does not have name matching '%s'", n.Name, pattern)}
	})
}

// NotTransitivelyDependOn is violated when a chain of dependencies leads
// from the node to a class selected by target. The shortest chain is
// reported.
func NotTransitivelyDependOn(target NodePredicate) Condition {
	return NewCondition("not transitively depend on classes that "+target.desc, func(in *Input, n *graph.Node) []Event {
		match := func(m *graph.Node) bool { return m != n && target.Test(in.Graph, m) }
		path := retrieval.FindPath(in.Graph, n.Name, match, retrieval.DefaultConfig())
		if path == nil {
			return []Event{nodeEvent(n, false, "Class <%s> does not transitively depend on classes that %s", n.Name, target.desc)}
		}

		hops := make([]string, 0, len(path)+1)
		hops = append(hops, n.Name)
		for _, d := range path {
			hops = append(hops, d.Target.Name)
		}
		return []Event{{
			Violated: true,
			Description: fmt.Sprintf("Class <%s> transitively depends on <%s> via %s",
				n.Name, path[len(path)-1].Target.Name, strings.Join(hops, " -> ")),
			Line:       path[0].Line(),
			Dependency: path[0],
			Node:       n,
		}}
	})
}

type cyclesKey struct{}

// BeFreeOfCycles is violated by every dependency of the node that closes a
// package cycle among the classes in scope.
func BeFreeOfCycles() Condition {
	return NewCondition("be free of cycles", func(in *Input, n *graph.Node) []Event {
		cycles := in.Memo(cyclesKey{}, func() any {
			inScope := make(map[*graph.Node]bool, len(in.Scope))
			for _, s := range in.Scope {
				inScope[s] = true
			}
			return analysis.NewAnalyzer(in.Graph).PackageCycles(func(m *graph.Node) bool { return inScope[m] })
		}).([]analysis.Cycle)

		var events []Event
		for _, c := range cycles {
			for _, d := range c.Edges {
				if d.Origin != n {
					continue
				}
				events = append(events, Event{
					Violated:    true,
					Description: fmt.Sprintf("Cycle detected: %s: %s", c, d.Description()),
					Line:        d.Line(),
					Dependency:  d,
					Node:        n,
				})
			}
		}
		if len(events) == 0 {
			events = append(events, nodeEvent(n, false, "Class <%s> is not part of a package cycle", n.Name))
		}
		return events
	})
}

// AllOf concatenates the events of every condition.
func AllOf(conds ...Condition) Condition {
	return NewCondition(joinDescriptions(conds, " and "), func(in *Input, n *graph.Node) []Event {
		var events []Event
		for _, c := range conds {
			events = append(events, c.Check(in, n)...)
		}
		return events
	})
}

// AnyOf returns the events of the first condition without violations and
// skips the rest; when every condition is violated, all events are kept.
func AnyOf(conds ...Condition) Condition {
	return NewCondition(joinDescriptions(conds, " or "), func(in *Input, n *graph.Node) []Event {
		var all []Event
		for _, c := range conds {
			events := c.Check(in, n)
			if !anyViolated(events) {
				return events
			}
			all = append(all, events...)
		}
		return all
	})
}

// Never flips every event of c.
func Never(c Condition) Condition {
	return NewCondition("never "+c.Description(), func(in *Input, n *graph.Node) []Event {
		events := c.Check(in, n)
		for i := range events {
			events[i].Violated = !events[i].Violated
		}
		return events
	})
}

func anyViolated(events []Event) bool {
	for _, e := range events {
		if e.Violated {
			return true
		}
	}
	return false
}

func joinDescriptions(conds []Condition, sep string) string {
	descs := make([]string, len(conds))
	for i, c := range conds {
		descs[i] = c.Description()
	}
	return strings.Join(descs, sep)
}
