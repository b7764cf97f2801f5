package types

// TeamMember is an employee assigned to a role within a team combination.
type TeamMember struct {
	EmployeeCandidate
	Role                 string  `json:"role"`
	AllocationPercentage int     `json:"allocation_percentage"`
	Score                float64 `json:"score"`
}

// TeamCombination is one staffing proposal for a project.
type TeamCombination struct {
	TeamMembers        []TeamMember `json:"team_members"`
	SkillsMatched      []string     `json:"skills_matched"`
	SkillsMissing      []string     `json:"skills_missing"`
	SkillsMatchPercent float64      `json:"skills_match_percent"`
	Score              float64      `json:"score"`
}

// AllocationByEmployee sums the allocation assigned to each employee within the combination.
func (c TeamCombination) AllocationByEmployee() map[string]int {
	totals := make(map[string]int, len(c.TeamMembers))
	for _, m := range c.TeamMembers {
		totals[m.ID] += m.AllocationPercentage
	}
	return totals
}

// Shortfall records a role that could not be filled completely.
type Shortfall struct {
	ResourceType string `json:"resource_type"`
	Requested    int    `json:"requested"`
	Filled       int    `json:"filled"`
}

// MatchResult is the outcome of a team search.
type MatchResult struct {
	MatchedResources map[string][]EmployeeCandidate `json:"matched_resources"`
	Combinations     []TeamCombination              `json:"possible_team_combinations"`
	Shortfalls       []Shortfall                    `json:"shortfalls,omitempty"`
}
