package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/resourcewise/internal/types"
)

// -----------------------------------------------------------------------------
// Candidate pool
// -----------------------------------------------------------------------------

// EmployeeRepository loads staffing candidates.
type EmployeeRepository interface {
	// Candidates returns active employees whose designation is one of designations.
	// An empty designations slice returns every active employee.
	Candidates(ctx context.Context, designations []string) ([]types.EmployeeCandidate, error)
}

// Candidates loads active employees with spare capacity computed from their current allocations.
func (db *DB) Candidates(ctx context.Context, designations []string) ([]types.EmployeeCandidate, error) {
	var filter any
	if len(designations) > 0 {
		filter = designations
	}

	rows, err := db.pool.Query(ctx,
		`SELECT e.id::text, e.name, e.email, d.title,
		        GREATEST(0, LEAST(100, COALESCE(e.capacity_percent, 100) - COALESCE(SUM(a.percent_allocated) FILTER (
		            WHERE a.status = 'active' AND a.start_date <= CURRENT_DATE AND a.end_date >= CURRENT_DATE), 0)))::int
		 FROM employees e
		 JOIN designations d ON d.id = e.designation_id
		 LEFT JOIN allocations a ON a.employee_id = e.id
		 WHERE e.is_active AND ($1::text[] IS NULL OR d.title = ANY($1::text[]))
		 GROUP BY e.id, e.name, e.email, d.title, e.capacity_percent
		 ORDER BY e.name, e.id`,
		filter,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []types.EmployeeCandidate
	index := make(map[string]int)
	for rows.Next() {
		var c types.EmployeeCandidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Designation, &c.AvailablePercentage); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		index[c.ID] = len(candidates)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	skillRows, err := db.pool.Query(ctx,
		`SELECT employee_id::text, skill_name, COALESCE(experience_months, 0), last_used
		 FROM employee_skills
		 WHERE employee_id = ANY($1::uuid[])
		 ORDER BY employee_id, skill_name`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate skills: %w", err)
	}
	defer skillRows.Close()

	for skillRows.Next() {
		var (
			employeeID string
			skill      types.EmployeeSkill
			lastUsed   *time.Time
		)
		if err := skillRows.Scan(&employeeID, &skill.SkillName, &skill.ExperienceMonths, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan candidate skill: %w", err)
		}
		if lastUsed != nil {
			skill.LastUsed = lastUsed.Format("2006-01-02")
		}
		if i, ok := index[employeeID]; ok {
			candidates[i].Skills = append(candidates[i].Skills, skill)
		}
	}
	if err := skillRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidate skills: %w", err)
	}

	return candidates, nil
}
