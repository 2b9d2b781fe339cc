// Package report renders graphs and rule results for people: Markdown
// reports and Mermaid package diagrams.
package report

import (
	"fmt"
	"io"
	"strings"

	"archcheck/internal/graph"
	"archcheck/internal/rules"
)

// Markdown writes a check report: graph statistics, a summary table and one
// section per violated rule listing its violations in evaluation order.
func Markdown(w io.Writer, stats graph.Stats, results []rules.Result) error {
	var sb strings.Builder
	sb.WriteString("# Architecture Check\n\n")

	sb.WriteString("| Classes | Unresolved | Dependencies | Packages |\n")
	sb.WriteString("|---|---|---|---|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d |\n\n", stats.Classes, stats.Stubs, stats.Dependencies, stats.Packages))

	failed := 0
	sb.WriteString("## Rules\n\n")
	sb.WriteString("| Rule | Status | Checked | Violations |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, r := range results {
		status := "✅ passed"
		if !r.Passed() {
			status = "❌ violated"
			failed++
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d |\n", escapeCell(r.Rule), status, r.Checked, len(r.Violations)))
	}
	sb.WriteString("\n")

	if failed == 0 {
		sb.WriteString("All rules passed.\n")
	}
	for _, r := range results {
		if r.Passed() {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", r.Rule))
		if r.Rule != r.Description {
			sb.WriteString(fmt.Sprintf("> %s\n\n", r.Description))
		}
		for _, v := range r.Violations {
			sb.WriteString(fmt.Sprintf("- `%s`\n", v.Description))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
