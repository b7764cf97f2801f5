package workflow

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/types"
)

// Format is the shape chosen for a tabular answer.
type Format string

// Answer formats.
const (
	FormatSummary Format = "summary"
	FormatList    Format = "list"
	FormatTable   Format = "table"
)

const (
	maxTableRows    = 20
	maxTableColumns = 8
	maxCellChars    = 50
	summaryPreview  = 5
	summaryFields   = 3
)

// keyFieldOrder puts the most recognisable columns first.
var keyFieldOrder = []string{"name", "email", "title", "designation", "skill_name", "project_name", "status"}

// ChooseFormat picks a format from the result shape: no rows is a summary,
// one row a list, a small result a table, anything larger a summary.
func ChooseFormat(res *db.QueryResult) Format {
	if res == nil || len(res.Rows) == 0 {
		return FormatSummary
	}
	switch {
	case len(res.Rows) == 1:
		return FormatList
	case len(res.Rows) <= maxTableRows && len(res.Columns) <= maxTableColumns:
		return FormatTable
	default:
		return FormatSummary
	}
}

// KeyFields orders columns with the well-known fields first, then the rest as given.
func KeyFields(columns []string) []string {
	out := make([]string, 0, len(columns))
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, k := range keyFieldOrder {
		if present[k] {
			out = append(out, k)
			present[k] = false
		}
	}
	for _, c := range columns {
		if present[c] {
			out = append(out, c)
			present[c] = false
		}
	}
	return out
}

// FormatResult renders a query result without a language model.
func FormatResult(res *db.QueryResult) string {
	if res == nil || len(res.Rows) == 0 {
		return "No results found for your query."
	}

	columns := KeyFields(columnsOf(res))
	var sb strings.Builder
	switch ChooseFormat(res) {
	case FormatList:
		sb.WriteString("Found 1 result:\n\n")
		for _, col := range columns {
			fmt.Fprintf(&sb, "- **%s:** %s\n", fieldLabel(col), cell(res.Rows[0][col]))
		}
	case FormatTable:
		fmt.Fprintf(&sb, "Found %d results:\n\n", len(res.Rows))
		sb.WriteString(markdownTable(res.Rows, columns))
	default:
		fmt.Fprintf(&sb, "Found %d results. Here are the first %d:\n\n", res.RowCount, min(summaryPreview, len(res.Rows)))
		for i, row := range res.Rows[:min(summaryPreview, len(res.Rows))] {
			parts := []string{fmt.Sprintf("%d.", i+1)}
			for _, col := range columns[:min(summaryFields, len(columns))] {
				parts = append(parts, fmt.Sprintf("**%s:** %s", fieldLabel(col), cell(row[col])))
			}
			sb.WriteString(strings.Join(parts, " "))
			sb.WriteByte('\n')
		}
	}

	if res.Truncated {
		sb.WriteString("\n" + truncationNote(res.RowCount))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncationNote(rows int) string {
	return fmt.Sprintf("Only the first %d rows were retrieved; try a narrower question for the full picture.", rows)
}

func columnsOf(res *db.QueryResult) []string {
	if len(res.Columns) > 0 {
		return res.Columns
	}
	var cols []string
	for k := range res.Rows[0] {
		cols = append(cols, k)
	}
	return cols
}

func markdownTable(rows []map[string]any, columns []string) string {
	var sb strings.Builder
	sb.WriteString("| ")
	labels := make([]string, len(columns))
	seps := make([]string, len(columns))
	for i, c := range columns {
		labels[i] = fieldLabel(c)
		seps[i] = "---"
	}
	sb.WriteString(strings.Join(labels, " | "))
	sb.WriteString(" |\n| ")
	sb.WriteString(strings.Join(seps, " | "))
	sb.WriteString(" |\n")

	for _, row := range rows {
		values := make([]string, len(columns))
		for i, c := range columns {
			values[i] = strings.ReplaceAll(cell(row[c]), "|", `\|`)
		}
		sb.WriteString("| ")
		sb.WriteString(strings.Join(values, " | "))
		sb.WriteString(" |\n")
	}
	return sb.String()
}

func cell(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			s = fmt.Sprintf("%.0f", x)
		} else {
			s = fmt.Sprintf("%.2f", x)
		}
	case time.Time:
		s = x.Format(time.RFC3339)
	default:
		s = fmt.Sprint(x)
	}
	if len([]rune(s)) > maxCellChars {
		s = string([]rune(s)[:maxCellChars-3]) + "..."
	}
	return s
}

// fieldLabel turns "skill_name" into "Skill Name".
func fieldLabel(col string) string {
	words := strings.Fields(strings.ReplaceAll(col, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var fieldPrompts = map[string]string{
	types.FieldName:              "the project name",
	types.FieldDuration:          "the duration in months",
	types.FieldStartingFrom:      "when the project starts",
	types.FieldSkillsRequired:    "the skills required, most important first",
	types.FieldResourcesRequired: "the roles needed, with how many people and what allocation",
}

// MissingInfoMessage asks for the project details still missing.
func MissingInfoMessage(fields []string) string {
	asks := make([]string, 0, len(fields))
	for _, f := range fields {
		if p, ok := fieldPrompts[f]; ok {
			asks = append(asks, "- "+p)
		}
	}
	return "To put a team together I still need a few details:\n" + strings.Join(asks, "\n")
}

// FormatMatch renders the proposed team combinations.
func FormatMatch(project *types.ProjectRequirement, result *types.MatchResult) string {
	if result == nil || len(result.Combinations) == 0 {
		return MatchingGapMessage(project, result)
	}

	var sb strings.Builder
	name := "the project"
	if project != nil && project.Name != "" {
		name = "**" + project.Name + "**"
	}
	fmt.Fprintf(&sb, "Here are %d team option(s) for %s:\n", len(result.Combinations), name)

	for i, combo := range result.Combinations {
		fmt.Fprintf(&sb, "\n**Option %d** (%.0f%% of required skills covered)\n", i+1, combo.SkillsMatchPercent)
		for _, m := range combo.TeamMembers {
			fmt.Fprintf(&sb, "- %s (%s) as %s at %d%%\n", m.Name, m.Designation, m.Role, m.AllocationPercentage)
		}
		if len(combo.SkillsMatched) > 0 {
			fmt.Fprintf(&sb, "Skills covered: %s\n", strings.Join(combo.SkillsMatched, ", "))
		}
		if len(combo.SkillsMissing) > 0 {
			fmt.Fprintf(&sb, "Skills missing: %s\n", strings.Join(combo.SkillsMissing, ", "))
		}
	}

	if len(result.Shortfalls) > 0 {
		sb.WriteString("\n")
		sb.WriteString(shortfallLines(result.Shortfalls))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// MatchingGapMessage explains why no team could be proposed.
func MatchingGapMessage(project *types.ProjectRequirement, result *types.MatchResult) string {
	var sb strings.Builder
	if project != nil && project.Name != "" {
		fmt.Fprintf(&sb, "I couldn't assemble a team for %s with the people currently available.\n", project.Name)
	} else {
		sb.WriteString("I couldn't assemble a team with the people currently available.\n")
	}
	if result != nil && len(result.Shortfalls) > 0 {
		sb.WriteString(shortfallLines(result.Shortfalls))
	}
	sb.WriteString("You could try lowering the required allocation, reducing the team size, " +
		"accepting related designations, or broadening the required skills.")
	return sb.String()
}

func shortfallLines(shortfalls []types.Shortfall) string {
	var sb strings.Builder
	for _, s := range shortfalls {
		fmt.Fprintf(&sb, "Only %d of %d %s position(s) could be filled.\n", s.Filled, s.Requested, s.ResourceType)
	}
	return sb.String()
}
