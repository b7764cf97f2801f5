package matching

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/resourcewise/internal/types"
	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// DefaultCombinations is the number of alternative teams proposed.
const DefaultCombinations = 3

// ErrNoResources is returned for a project that requests no resources.
var ErrNoResources = errors.New("project requests no resources")

// Options tune a Searcher.
type Options struct {
	// MaxCombinations bounds the proposals returned. Zero means DefaultCombinations.
	MaxCombinations int
	// Now is the clock used for recency. Nil means time.Now.
	Now func() time.Time
}

// Searcher builds team combinations.
type Searcher struct {
	vocab  *vocabulary.Vocabulary
	opts   Options
	logger *slog.Logger
}

// NewSearcher creates a searcher. vocab supplies designation compatibility and skill relations.
func NewSearcher(vocab *vocabulary.Vocabulary, opts Options, logger *slog.Logger) *Searcher {
	if opts.MaxCombinations <= 0 {
		opts.MaxCombinations = DefaultCombinations
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{vocab: vocab, opts: opts, logger: logger}
}

// ranked is a scored candidate.
type ranked struct {
	candidate types.EmployeeCandidate
	score     CandidateScore
}

// role is one resource line with its eligible candidates, best first.
type role struct {
	requirement types.ResourceRequirement
	pool        []ranked
}

// Search proposes teams for project from pool. Short pools are reported as
// shortfalls; an empty result is not an error.
func (s *Searcher) Search(project *types.ProjectRequirement, pool []types.EmployeeCandidate) (*types.MatchResult, error) {
	if project == nil {
		return nil, fmt.Errorf("project requirement is required")
	}
	if len(project.ResourcesRequired) == 0 {
		return nil, ErrNoResources
	}

	scorer := NewScorer(s.vocab, project, s.opts.Now())
	scores := make(map[string]CandidateScore, len(pool))
	for _, c := range pool {
		scores[c.ID] = scorer.Score(c)
	}

	result := &types.MatchResult{MatchedResources: make(map[string][]types.EmployeeCandidate)}
	roles := make([]role, 0, len(project.ResourcesRequired))
	for _, req := range project.ResourcesRequired {
		r := role{requirement: req, pool: s.eligible(req, pool, scores)}
		roles = append(roles, r)

		for _, rc := range r.pool {
			result.MatchedResources[req.ResourceType] = appendUnique(result.MatchedResources[req.ResourceType], rc.candidate)
		}
		if len(r.pool) < req.ResourceCount {
			result.Shortfalls = append(result.Shortfalls, types.Shortfall{
				ResourceType: req.ResourceType,
				Requested:    req.ResourceCount,
				Filled:       len(r.pool),
			})
		}
	}

	result.Combinations = s.combinations(project, roles)

	s.logger.Info("team search complete",
		slog.String("project", project.Name),
		slog.Int("candidates", len(pool)),
		slog.Int("combinations", len(result.Combinations)),
		slog.Int("shortfalls", len(result.Shortfalls)),
	)
	return result, nil
}

// eligible filters pool by designation and inclusive availability, then ranks it:
// score, then availability, then most recent use, then ID.
func (s *Searcher) eligible(req types.ResourceRequirement, pool []types.EmployeeCandidate, scores map[string]CandidateScore) []ranked {
	need := req.Allocation()
	var out []ranked
	for _, c := range pool {
		if c.AvailablePercentage < need {
			continue
		}
		if !s.designationMatches(req.ResourceType, c.Designation) {
			continue
		}
		out = append(out, ranked{candidate: c, score: scores[c.ID]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score.Score != b.score.Score {
			return a.score.Score > b.score.Score
		}
		if a.candidate.AvailablePercentage != b.candidate.AvailablePercentage {
			return a.candidate.AvailablePercentage > b.candidate.AvailablePercentage
		}
		if !a.score.LastUse.Equal(b.score.LastUse) {
			return a.score.LastUse.After(b.score.LastUse)
		}
		return a.candidate.ID < b.candidate.ID
	})
	return out
}

func (s *Searcher) designationMatches(requested, designation string) bool {
	if strings.EqualFold(strings.TrimSpace(requested), strings.TrimSpace(designation)) {
		return true
	}
	return s.vocab != nil && s.vocab.DesignationMatches(requested, designation)
}

// combinations builds alternatives by rotating each role's lead pick.
func (s *Searcher) combinations(project *types.ProjectRequirement, roles []role) []types.TeamCombination {
	seen := make(map[string]bool)
	var combos []types.TeamCombination

	attempts := s.opts.MaxCombinations * 2
	for k := 0; k < attempts && len(combos) < s.opts.MaxCombinations; k++ {
		combo, ok := s.assemble(project, roles, k)
		if !ok {
			continue
		}
		sig := signature(combo)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		combos = append(combos, combo)
	}

	sort.SliceStable(combos, func(i, j int) bool {
		if combos[i].SkillsMatchPercent != combos[j].SkillsMatchPercent {
			return combos[i].SkillsMatchPercent > combos[j].SkillsMatchPercent
		}
		return combos[i].Score > combos[j].Score
	})
	return combos
}

// assemble fills every role for rotation k. The lead of each role is its k-th
// ranked candidate (wrapping); the rest follow in rank order. A candidate is
// skipped when the allocation already assigned in this combination plus this
// role's allocation would exceed their availability or 100.
func (s *Searcher) assemble(project *types.ProjectRequirement, roles []role, k int) (types.TeamCombination, bool) {
	var combo types.TeamCombination
	assigned := make(map[string]int)

	for _, r := range roles {
		if len(r.pool) == 0 {
			continue
		}
		need := r.requirement.Allocation()
		lead := k % len(r.pool)
		order := make([]ranked, 0, len(r.pool))
		order = append(order, r.pool[lead])
		order = append(order, r.pool[:lead]...)
		order = append(order, r.pool[lead+1:]...)

		filled := 0
		for _, rc := range order {
			if filled == r.requirement.ResourceCount {
				break
			}
			limit := min(rc.candidate.AvailablePercentage, 100)
			if assigned[rc.candidate.ID]+need > limit {
				continue
			}
			assigned[rc.candidate.ID] += need
			combo.TeamMembers = append(combo.TeamMembers, types.TeamMember{
				EmployeeCandidate:    rc.candidate,
				Role:                 r.requirement.ResourceType,
				AllocationPercentage: need,
				Score:                rc.score.Score,
			})
			combo.Score += rc.score.Score
			filled++
		}
	}

	if len(combo.TeamMembers) == 0 {
		return combo, false
	}
	combo.SkillsMatched, combo.SkillsMissing, combo.SkillsMatchPercent = s.coverage(project.SkillsRequired, combo.TeamMembers)
	return combo, true
}

// coverage splits required skills into matched and missing, in required order.
func (s *Searcher) coverage(required []string, members []types.TeamMember) (matched, missing []string, percent float64) {
	matched, missing = []string{}, []string{}
	if len(required) == 0 {
		return matched, missing, 100
	}

	for _, req := range required {
		found := false
		for _, m := range members {
			for _, held := range m.Skills {
				if strings.EqualFold(held.SkillName, req) || (s.vocab != nil && s.vocab.Implies(held.SkillName, req)) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if found {
			matched = append(matched, req)
		} else {
			missing = append(missing, req)
		}
	}
	return matched, missing, float64(len(matched)) / float64(len(required)) * 100
}

func signature(c types.TeamCombination) string {
	parts := make([]string, 0, len(c.TeamMembers))
	for _, m := range c.TeamMembers {
		parts = append(parts, m.Role+"="+m.ID)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func appendUnique(list []types.EmployeeCandidate, c types.EmployeeCandidate) []types.EmployeeCandidate {
	for _, existing := range list {
		if existing.ID == c.ID {
			return list
		}
	}
	return append(list, c)
}
