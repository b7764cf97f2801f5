package types

import (
	"strings"
	"time"
)

// LastUsedCurrent marks a skill that the employee is using right now.
const LastUsedCurrent = "Current"

// EmployeeSkill is one skill entry on an employee profile.
type EmployeeSkill struct {
	SkillName        string `json:"skill_name" validate:"required"`
	ExperienceMonths int    `json:"experience_months" validate:"min=0"`
	LastUsed         string `json:"last_used,omitempty"`
}

// LastUsedAt parses LastUsed. "Current" (any case) resolves to now.
// Accepted layouts are YYYY-MM and YYYY-MM-DD. ok is false when the value is empty or unparseable.
func (s EmployeeSkill) LastUsedAt(now time.Time) (t time.Time, ok bool) {
	v := strings.TrimSpace(s.LastUsed)
	if v == "" {
		return time.Time{}, false
	}
	if strings.EqualFold(v, LastUsedCurrent) {
		return now, true
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if parsed, err := time.Parse(layout, v); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// EmployeeCandidate is an employee considered for staffing.
// AvailablePercentage is the spare capacity left after active allocations.
type EmployeeCandidate struct {
	ID                  string          `json:"id" validate:"required"`
	Name                string          `json:"name" validate:"required"`
	Email               string          `json:"email,omitempty"`
	Designation         string          `json:"designation" validate:"required"`
	AvailablePercentage int             `json:"available_percentage" validate:"min=0,max=100"`
	Skills              []EmployeeSkill `json:"skills" validate:"dive"`
}

// SkillNames returns the candidate's skill names in profile order.
func (e EmployeeCandidate) SkillNames() []string {
	names := make([]string, 0, len(e.Skills))
	for _, s := range e.Skills {
		names = append(names, s.SkillName)
	}
	return names
}

// MostRecentUse returns the latest LastUsed across all skills, or the zero time.
func (e EmployeeCandidate) MostRecentUse(now time.Time) time.Time {
	var latest time.Time
	for _, s := range e.Skills {
		if t, ok := s.LastUsedAt(now); ok && t.After(latest) {
			latest = t
		}
	}
	return latest
}
