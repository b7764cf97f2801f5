// Package types provides type definitions for structured data shared across the resourcewise system.
package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultAllocationPercentage is the allocation assumed when a resource entry does not state one.
const DefaultAllocationPercentage = 100

// ResourceRequirement is one staffing line of a project: how many people of which designation.
type ResourceRequirement struct {
	ResourceType                 string `json:"resource_type" validate:"required"`
	ResourceCount                int    `json:"resource_count" validate:"required,min=1"`
	RequiredAllocationPercentage int    `json:"required_allocation_percentage,omitempty" validate:"omitempty,min=1,max=100"`
}

// Allocation returns the required allocation, falling back to DefaultAllocationPercentage.
func (r ResourceRequirement) Allocation() int {
	if r.RequiredAllocationPercentage <= 0 {
		return DefaultAllocationPercentage
	}
	return r.RequiredAllocationPercentage
}

// ProjectRequirement describes a project that needs staffing.
// SkillsRequired is ordered by criticality: the first entry is the most critical.
type ProjectRequirement struct {
	Name              string                `json:"name" validate:"required"`
	DurationMonths    int                   `json:"duration_months" validate:"required,min=1"`
	StartingFrom      string                `json:"starting_from" validate:"required"`
	SkillsRequired    []string              `json:"skills_required" validate:"required,min=1,dive,required"`
	ResourcesRequired []ResourceRequirement `json:"resources_required" validate:"required,min=1,dive"`
}

// Validate validates the ProjectRequirement using the validator.
func (p *ProjectRequirement) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}

// Project field names reported when details are missing.
const (
	FieldName              = "name"
	FieldDuration          = "duration_months"
	FieldStartingFrom      = "starting_from"
	FieldSkillsRequired    = "skills_required"
	FieldResourcesRequired = "resources_required"
)

// MissingFields lists the project fields that are still unknown, in a stable order.
// A nil requirement is missing every field.
func (p *ProjectRequirement) MissingFields() []string {
	if p == nil {
		return []string{FieldName, FieldDuration, FieldStartingFrom, FieldSkillsRequired, FieldResourcesRequired}
	}

	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, FieldName)
	}
	if p.DurationMonths <= 0 {
		missing = append(missing, FieldDuration)
	}
	if strings.TrimSpace(p.StartingFrom) == "" {
		missing = append(missing, FieldStartingFrom)
	}
	if len(p.SkillsRequired) == 0 {
		missing = append(missing, FieldSkillsRequired)
	}
	if len(p.ResourcesRequired) == 0 {
		missing = append(missing, FieldResourcesRequired)
	}
	return missing
}
