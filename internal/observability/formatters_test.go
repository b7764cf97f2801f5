package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jonathan/resourcewise/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintProject(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProject(&types.ProjectRequirement{
		Name:           "Mobile Banking App",
		DurationMonths: 3,
		StartingFrom:   "July",
		SkillsRequired: []string{"React Native", "TypeScript"},
		ResourcesRequired: []types.ResourceRequirement{
			{ResourceType: "Technical Lead", ResourceCount: 1, RequiredAllocationPercentage: 50},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "PROJECT REQUIREMENT")
	assert.Contains(t, output, "Mobile Banking App")
	assert.Contains(t, output, "1 × Technical Lead @ 50%")
}

func TestPrintProject_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintProject(nil)
	assert.Empty(t, buf.String())
}

func TestPrintResolution(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResolution(map[string][]string{
		"SSE":      {"Senior Software Engineer"},
		"frontend": {"React", "Angular", "Vue.js", "JavaScript", "TypeScript", "Redux", "Next.js"},
	}, []string{"ninjas"})
	output := buf.String()

	assert.Contains(t, output, "SSE → Senior Software Engineer")
	assert.Contains(t, output, "(+2)", "long value lists wrap instead of losing the remainder count")
	assert.NotContains(t, output, "...")
	assert.Contains(t, output, "Unresolved: ninjas")
	assert.Less(t, strings.Index(output, "SSE"), strings.Index(output, "frontend"))
}

func TestPrintMatchResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatchResult(&types.MatchResult{
		Combinations: []types.TeamCombination{{
			TeamMembers: []types.TeamMember{{
				EmployeeCandidate:    types.EmployeeCandidate{ID: "e1", Name: "Asha", Designation: "Technical Lead"},
				Role:                 "Technical Lead",
				AllocationPercentage: 50,
			}},
			SkillsMatchPercent: 66.7,
			SkillsMissing:      []string{"Django"},
		}},
		Shortfalls: []types.Shortfall{{ResourceType: "QA Engineer", Requested: 2, Filled: 1}},
	})
	output := buf.String()

	assert.Contains(t, output, "Option 1  skills match 67%")
	assert.Contains(t, output, "Asha (Technical Lead) as Technical Lead @ 50%")
	assert.Contains(t, output, "missing: Django")
	assert.Contains(t, output, "QA Engineer: 1 of 2")
}

func TestPrintMatchResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintMatchResult(&types.MatchResult{})
	assert.Contains(t, buf.String(), "No feasible team combination.")
}

func TestPrintAnswer_Wraps(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintAnswer("completed", strings.Repeat("word ", 40))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "ANSWER [completed]")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")
	logger.Info("stage finished", slog.String("stage", "query_generation"))
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), `"stage":"query_generation"`)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSpanHelpers_NoProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.span")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { EndSpan(span, errors.New("boom")) })
}
