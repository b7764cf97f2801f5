package workflow

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/resourcewise/internal/db"
	"github.com/jonathan/resourcewise/internal/types"
)

func rows(n int, columns ...string) *db.QueryResult {
	res := &db.QueryResult{Columns: columns, RowCount: n}
	for i := 0; i < n; i++ {
		row := map[string]any{}
		for _, c := range columns {
			row[c] = fmt.Sprintf("%s-%d", c, i)
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func TestChooseFormat(t *testing.T) {
	tests := []struct {
		name string
		res  *db.QueryResult
		want Format
	}{
		{"nil", nil, FormatSummary},
		{"empty", rows(0, "name"), FormatSummary},
		{"single row", rows(1, "name", "email"), FormatList},
		{"small", rows(20, "name", "email"), FormatTable},
		{"too many rows", rows(21, "name"), FormatSummary},
		{"too many columns", rows(5, "a", "b", "c", "d", "e", "f", "g", "h", "i"), FormatSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseFormat(tt.res))
		})
	}
}

func TestKeyFields(t *testing.T) {
	got := KeyFields([]string{"id", "status", "email", "capacity", "name"})
	assert.Equal(t, []string{"name", "email", "status", "id", "capacity"}, got)
}

func TestFormatResult(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No results found for your query.", FormatResult(rows(0, "name")))
	})

	t.Run("single row lists every field", func(t *testing.T) {
		out := FormatResult(&db.QueryResult{
			Columns:  []string{"skill_name", "name"},
			Rows:     []map[string]any{{"skill_name": "Go", "name": "Asha"}},
			RowCount: 1,
		})
		assert.Equal(t, "Found 1 result:\n\n- **Name:** Asha\n- **Skill Name:** Go", out)
	})

	t.Run("table", func(t *testing.T) {
		out := FormatResult(&db.QueryResult{
			Columns: []string{"capacity", "name"},
			Rows: []map[string]any{
				{"capacity": float64(80), "name": "Asha"},
				{"capacity": 12.5, "name": "Ben|Jr"},
			},
			RowCount: 2,
		})
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 6)
		assert.Equal(t, "| Name | Capacity |", lines[2])
		assert.Equal(t, "| --- | --- |", lines[3])
		assert.Equal(t, "| Asha | 80 |", lines[4])
		assert.Equal(t, `| Ben\|Jr | 12.50 |`, lines[5])
	})

	t.Run("summary previews the first rows", func(t *testing.T) {
		out := FormatResult(rows(30, "name", "email", "title", "status"))
		assert.True(t, strings.HasPrefix(out, "Found 30 results. Here are the first 5:"))
		assert.Contains(t, out, "5. **Name:** name-4 **Email:** email-4 **Title:** title-4")
		assert.NotContains(t, out, "name-5")
		assert.NotContains(t, out, "Status")
	})

	t.Run("truncated", func(t *testing.T) {
		res := rows(25, "name")
		res.Truncated = true
		assert.Contains(t, FormatResult(res), "Only the first 25 rows were retrieved")
	})

	t.Run("long cells are shortened", func(t *testing.T) {
		long := strings.Repeat("x", 80)
		out := FormatResult(&db.QueryResult{Columns: []string{"name"}, Rows: []map[string]any{{"name": long}}, RowCount: 1})
		assert.Contains(t, out, strings.Repeat("x", 47)+"...")
		assert.NotContains(t, out, strings.Repeat("x", 48))
	})
}

func TestMissingInfoMessage(t *testing.T) {
	out := MissingInfoMessage([]string{types.FieldDuration, types.FieldResourcesRequired})
	assert.Contains(t, out, "the duration in months")
	assert.Contains(t, out, "the roles needed")
	assert.NotContains(t, out, "project name")
}

func TestFormatMatch(t *testing.T) {
	project := &types.ProjectRequirement{Name: "Apollo"}
	result := &types.MatchResult{
		Combinations: []types.TeamCombination{{
			TeamMembers: []types.TeamMember{{
				EmployeeCandidate:    types.EmployeeCandidate{ID: "e1", Name: "Asha", Designation: "Technical Lead"},
				Role:                 "TL",
				AllocationPercentage: 50,
			}},
			SkillsMatched:      []string{"Go"},
			SkillsMissing:      []string{"Kafka"},
			SkillsMatchPercent: 50,
		}},
		Shortfalls: []types.Shortfall{{ResourceType: "QA", Requested: 2, Filled: 1}},
	}

	out := FormatMatch(project, result)
	assert.Contains(t, out, "Here are 1 team option(s) for **Apollo**")
	assert.Contains(t, out, "**Option 1** (50% of required skills covered)")
	assert.Contains(t, out, "- Asha (Technical Lead) as TL at 50%")
	assert.Contains(t, out, "Skills missing: Kafka")
	assert.Contains(t, out, "Only 1 of 2 QA position(s) could be filled.")

	gap := FormatMatch(project, &types.MatchResult{})
	assert.Contains(t, gap, "couldn't assemble a team for Apollo")
	assert.Contains(t, gap, "lowering the required allocation")
}
