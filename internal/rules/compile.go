package rules

import (
	"fmt"
	"strings"

	"archcheck/internal/config"
)

// Condition keywords accepted in configuration.
const (
	ShouldNotDependOn             = "not_depend_on"
	ShouldOnlyDependOn            = "only_depend_on"
	ShouldNotBeAccessedBy         = "not_be_accessed_by"
	ShouldOnlyBeAccessedBy        = "only_be_accessed_by"
	ShouldHaveNameMatching        = "have_name_matching"
	ShouldNotTransitivelyDependOn = "not_transitively_depend_on"
	ShouldBeFreeOfCycles          = "be_free_of_cycles"
)

var targetConditions = map[string]func(NodePredicate) Condition{
	ShouldNotDependOn:             NotDependOn,
	ShouldOnlyDependOn:            OnlyDependOn,
	ShouldNotBeAccessedBy:         NotBeAccessedBy,
	ShouldOnlyBeAccessedBy:        OnlyBeAccessedBy,
	ShouldNotTransitivelyDependOn: NotTransitivelyDependOn,
}

// Compile builds a rule declared in configuration. The scope always
// selects imported classes, narrowed by the scope pattern when given.
func Compile(cfg config.RuleConfig) (Rule, error) {
	scope := Classes()
	if strings.TrimSpace(cfg.Scope) != "" {
		scope = NameMatching(cfg.Scope).And(Classes())
	}

	should := strings.ToLower(strings.TrimSpace(cfg.Should))
	var cond Condition
	switch {
	case should == ShouldBeFreeOfCycles:
		cond = BeFreeOfCycles()
	case should == ShouldHaveNameMatching:
		if strings.TrimSpace(cfg.Target) == "" {
			return Rule{}, fmt.Errorf("rule %q: %s needs a target pattern", cfg.Name, should)
		}
		cond = HaveNameMatching(cfg.Target)
	case targetConditions[should] != nil:
		if strings.TrimSpace(cfg.Target) == "" {
			return Rule{}, fmt.Errorf("rule %q: %s needs a target pattern", cfg.Name, should)
		}
		cond = targetConditions[should](NameMatching(cfg.Target))
	default:
		return Rule{}, fmt.Errorf("rule %q: unknown condition %q", cfg.Name, cfg.Should)
	}

	return Rule{Name: cfg.Name, Scope: scope, Condition: cond, Reason: cfg.Because}, nil
}

// CompileAll compiles every rule, stopping at the first error.
func CompileAll(cfgs []config.RuleConfig) ([]Rule, error) {
	out := make([]Rule, 0, len(cfgs))
	for _, c := range cfgs {
		r, err := Compile(c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
