// Package matching assembles staffing proposals for a project from a pool of candidates.
package matching

import (
	"strings"
	"time"

	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// Scoring weights. They are tuned against the ranking scenarios in search_test.go:
// a candidate covering more required skills outranks one covering fewer, the most
// critical skill outweighs any single later one, and fresher use beats equal but older use.
const (
	// CriticalSkillWeight weighs SkillsRequired[0]; every later skill weighs 1.
	CriticalSkillWeight = 3.0
	// CriticalMatchBonus is added when the most critical skill is covered.
	CriticalMatchBonus = 0.15

	// With three or more required skills, breadth weighs at least as much as depth.
	BroadDepthWeight   = 0.5
	BroadBreadthWeight = 0.5
	// With one or two required skills, depth dominates.
	NarrowDepthWeight   = 0.8
	NarrowBreadthWeight = 0.2
	// BroadRequirementSize is the skill count from which the broad weights apply.
	BroadRequirementSize = 3

	// Depth strength of a direct match: BaseMatchStrength plus up to
	// ExperienceStrength for ExperienceSaturationMonths of experience.
	BaseMatchStrength          = 0.4
	ExperienceStrength         = 0.6
	ExperienceSaturationMonths = 36

	// ImpliedCredit scales a framework match credited to its base language.
	ImpliedCredit = 0.8
	// TransferCredit scales a sibling technology; it adds depth but not coverage.
	TransferCredit = 0.3

	// Recency windows in months.
	FreshMonths    = 6
	ModerateMonths = 18

	// ShortProjectMonths is the horizon up to which recency is weighted more heavily.
	ShortProjectMonths = 3

	// RecencyBonus is added in full for a covering skill in use now and decays
	// linearly to zero over RecencyHorizonMonths. It separates candidates that
	// cover the same skills inside one recency bucket.
	RecencyBonus         = 0.02
	RecencyHorizonMonths = 60
)

// Recency multipliers: normal horizon, then short horizon.
var (
	recencyMultiplier = map[Recency]float64{
		RecencyFresh:    1.0,
		RecencyModerate: 0.8,
		RecencyStale:    0.5,
		RecencyUnknown:  0.6,
	}
	shortProjectRecencyMultiplier = map[Recency]float64{
		RecencyFresh:    1.0,
		RecencyModerate: 0.6,
		RecencyStale:    0.25,
		RecencyUnknown:  0.4,
	}
)

// Recency buckets how long ago a skill was last used.
type Recency string

// Recency buckets.
const (
	RecencyFresh    Recency = "fresh"
	RecencyModerate Recency = "moderate"
	RecencyStale    Recency = "stale"
	RecencyUnknown  Recency = "unknown"
)

// RecencyOf classifies a skill's last use relative to now.
func RecencyOf(skill types.EmployeeSkill, now time.Time) Recency {
	used, ok := skill.LastUsedAt(now)
	if !ok {
		return RecencyUnknown
	}
	months := monthsBetween(used, now)
	switch {
	case months < FreshMonths:
		return RecencyFresh
	case months <= ModerateMonths:
		return RecencyModerate
	default:
		return RecencyStale
	}
}

func monthsBetween(from, to time.Time) int {
	if !from.Before(to) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// CandidateScore is a candidate's fit against a project's skill list.
type CandidateScore struct {
	Score float64
	// Covered holds the required skills the candidate covers directly or through a framework.
	Covered []string
	// LastUse is the most recent use of any skill.
	LastUse time.Time
}

// Scorer computes candidate scores for one project.
type Scorer struct {
	vocab    *vocabulary.Vocabulary
	required []string
	short    bool
	now      time.Time
}

// NewScorer prepares a scorer for project's SkillsRequired.
func NewScorer(vocab *vocabulary.Vocabulary, project *types.ProjectRequirement, now time.Time) *Scorer {
	return &Scorer{
		vocab:    vocab,
		required: project.SkillsRequired,
		short:    project.DurationMonths > 0 && project.DurationMonths <= ShortProjectMonths,
		now:      now,
	}
}

func (s *Scorer) weight(i int) float64 {
	if i == 0 {
		return CriticalSkillWeight
	}
	return 1
}

// strength is the depth credit of one held skill, in [0,1].
func (s *Scorer) strength(skill types.EmployeeSkill) float64 {
	exp := float64(skill.ExperienceMonths) / ExperienceSaturationMonths
	if exp > 1 {
		exp = 1
	}
	if exp < 0 {
		exp = 0
	}
	multipliers := recencyMultiplier
	if s.short {
		multipliers = shortProjectRecencyMultiplier
	}
	return (BaseMatchStrength + ExperienceStrength*exp) * multipliers[RecencyOf(skill, s.now)]
}

// Score evaluates c against the required skills.
func (s *Scorer) Score(c types.EmployeeCandidate) CandidateScore {
	out := CandidateScore{LastUse: c.MostRecentUse(s.now)}
	if len(s.required) == 0 {
		return out
	}

	var depth, totalWeight float64
	covered := 0
	criticalCovered := false
	var lastCovering time.Time

	for i, req := range s.required {
		w := s.weight(i)
		totalWeight += w

		best, direct := 0.0, false
		for _, held := range c.Skills {
			switch {
			case strings.EqualFold(held.SkillName, req):
				best = max(best, s.strength(held))
				direct = true
				lastCovering = later(lastCovering, held, s.now)
			case s.vocab != nil && s.vocab.Implies(held.SkillName, req):
				best = max(best, ImpliedCredit*s.strength(held))
				direct = true
				lastCovering = later(lastCovering, held, s.now)
			case s.vocab != nil && s.vocab.Siblings(held.SkillName, req):
				best = max(best, TransferCredit*s.strength(held))
			}
		}

		depth += w * best
		if direct {
			covered++
			out.Covered = append(out.Covered, req)
			if i == 0 {
				criticalCovered = true
			}
		}
	}

	depthWeight, breadthWeight := NarrowDepthWeight, NarrowBreadthWeight
	if len(s.required) >= BroadRequirementSize {
		depthWeight, breadthWeight = BroadDepthWeight, BroadBreadthWeight
	}

	out.Score = depthWeight*(depth/totalWeight) + breadthWeight*(float64(covered)/float64(len(s.required)))
	if criticalCovered {
		out.Score += CriticalMatchBonus
	}
	if covered > 0 {
		out.Score += RecencyBonus * s.freshness(lastCovering)
	}
	return out
}

// freshness maps a last-use time onto [0,1]: 1 for now, 0 at or beyond the horizon
// and for an unknown time.
func (s *Scorer) freshness(used time.Time) float64 {
	if used.IsZero() {
		return 0
	}
	horizon := time.Duration(RecencyHorizonMonths) * 30 * 24 * time.Hour
	elapsed := s.now.Sub(used)
	if elapsed <= 0 {
		return 1
	}
	if elapsed >= horizon {
		return 0
	}
	return 1 - float64(elapsed)/float64(horizon)
}

func later(latest time.Time, skill types.EmployeeSkill, now time.Time) time.Time {
	if t, ok := skill.LastUsedAt(now); ok && t.After(latest) {
		return t
	}
	return latest
}
