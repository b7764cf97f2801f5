// Package observability provides logging, metrics, tracing and the formatted output used by the CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/resourcewise/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 64
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProject outputs the staffing requirement being matched.
func (p *Printer) PrintProject(project *types.ProjectRequirement) {
	if project == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Project:  %s\n", project.Name))
	sb.WriteString(fmt.Sprintf("Duration: %d months from %s\n", project.DurationMonths, project.StartingFrom))
	sb.WriteString(fmt.Sprintf("Skills:   %s\n", strings.Join(project.SkillsRequired, ", ")))
	sb.WriteString("\nRoles:\n")
	for _, r := range project.ResourcesRequired {
		sb.WriteString(fmt.Sprintf("  • %d × %s @ %d%%\n", r.ResourceCount, r.ResourceType, r.Allocation()))
	}

	p.printBox("PROJECT REQUIREMENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintResolution outputs resolved fuzzy terms, sorted by term.
func (p *Printer) PrintResolution(resolution map[string][]string, unresolved []string) {
	if len(resolution) == 0 && len(unresolved) == 0 {
		return
	}

	terms := make([]string, 0, len(resolution))
	for term := range resolution {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var sb strings.Builder
	for _, term := range terms {
		values := resolution[term]
		shown := values
		if len(shown) > maxItemsToShow {
			shown = shown[:maxItemsToShow]
		}
		sb.WriteString(fmt.Sprintf("%s → %s", term, strings.Join(shown, ", ")))
		if len(values) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf(" (+%d)", len(values)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}
	if len(unresolved) > 0 {
		sb.WriteString(fmt.Sprintf("\nUnresolved: %s\n", strings.Join(unresolved, ", ")))
	}

	p.printBox("RESOLVED TERMS", wrap(strings.TrimSuffix(sb.String(), "\n"), boxWidth-4))
}

// PrintMatchResult outputs the best team combinations and any unfilled roles.
func (p *Printer) PrintMatchResult(result *types.MatchResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	if len(result.Combinations) == 0 {
		sb.WriteString("No feasible team combination.\n")
	}

	count := min(len(result.Combinations), maxItemsToShow)
	for i := 0; i < count; i++ {
		combo := result.Combinations[i]
		sb.WriteString(fmt.Sprintf("Option %d  skills match %.0f%%\n", i+1, combo.SkillsMatchPercent))
		for _, m := range combo.TeamMembers {
			sb.WriteString(fmt.Sprintf("  • %s (%s) as %s @ %d%%\n", m.Name, m.Designation, m.Role, m.AllocationPercentage))
		}
		if len(combo.SkillsMissing) > 0 {
			sb.WriteString(fmt.Sprintf("  missing: %s\n", strings.Join(combo.SkillsMissing, ", ")))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(result.Shortfalls) > 0 {
		sb.WriteString("\nUnfilled roles:\n")
		for _, s := range result.Shortfalls {
			sb.WriteString(fmt.Sprintf("  • %s: %d of %d\n", s.ResourceType, s.Filled, s.Requested))
		}
	}

	p.printBox("TEAM COMBINATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAnswer outputs the final assistant response with the stage it ended on.
func (p *Printer) PrintAnswer(stage, answer string) {
	p.printBox(fmt.Sprintf("ANSWER [%s]", stage), wrap(answer, boxWidth-4))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// wrap breaks text on word boundaries so that lines fit the box.
func wrap(text string, width int) string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
