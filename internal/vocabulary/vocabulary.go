// Package vocabulary holds the business vocabulary: designation abbreviations,
// skill categories and technology relations.
package vocabulary

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabularyYAML []byte

// Category is a named group of skills.
type Category struct {
	Skills  []string `yaml:"skills"`
	Roles   []string `yaml:"roles"`
	Aliases []string `yaml:"aliases"`
}

// Technology relates a framework to the languages it implies and its siblings.
type Technology struct {
	Base     []string `yaml:"base"`
	Siblings []string `yaml:"siblings"`
	Domain   string   `yaml:"domain"`
}

// Settings are the resolution limits.
type Settings struct {
	MaxResultsPerCategory     int     `yaml:"max_results_per_category"`
	FuzzyThreshold            float64 `yaml:"fuzzy_threshold"`
	DesignationFuzzyLimit     int     `yaml:"designation_fuzzy_limit"`
	SkillFuzzyLimit           int     `yaml:"skill_fuzzy_limit"`
	EnableVectorFallback      bool    `yaml:"enable_vector_fallback"`
	VectorSimilarityThreshold float64 `yaml:"vector_similarity_threshold"`
	VectorDesignationLimit    int     `yaml:"vector_designation_limit"`
	VectorSkillLimit          int     `yaml:"vector_skill_limit"`
}

// Vocabulary is immutable after Parse.
type Vocabulary struct {
	Designations           map[string][]string   `yaml:"designations"`
	DesignationKeywords    []string              `yaml:"designation_keywords"`
	CompatibleDesignations map[string][]string   `yaml:"compatible_designations"`
	SkillCategories        map[string]Category   `yaml:"skill_categories"`
	Technologies           map[string]Technology `yaml:"technologies"`
	Settings               Settings              `yaml:"settings"`

	designationsFold map[string][]string
	aliases          map[string]string
	technologiesFold map[string]Technology
	keywords         map[string]bool
}

// Parse decodes vocabulary YAML and builds the lookup indexes.
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	v.applyDefaults()
	v.index()
	return &v, nil
}

// LoadFile parses the vocabulary at path.
func LoadFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}
	return Parse(data)
}

var (
	defaultVocabulary *Vocabulary
	defaultOnce       sync.Once
	defaultErr        error
)

// Default returns the embedded vocabulary, parsed once.
func Default() (*Vocabulary, error) {
	defaultOnce.Do(func() {
		defaultVocabulary, defaultErr = Parse(defaultVocabularyYAML)
		if defaultErr == nil {
			slog.Debug("vocabulary loaded",
				slog.Int("designations", len(defaultVocabulary.Designations)),
				slog.Int("categories", len(defaultVocabulary.SkillCategories)),
				slog.Int("technologies", len(defaultVocabulary.Technologies)),
			)
		}
	})
	return defaultVocabulary, defaultErr
}

// MustDefault returns the embedded vocabulary and panics if it does not parse.
func MustDefault() *Vocabulary {
	v, err := Default()
	if err != nil {
		panic(err)
	}
	return v
}

// Load returns the vocabulary at path, or the embedded one when path is empty.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

func (v *Vocabulary) applyDefaults() {
	s := &v.Settings
	if s.MaxResultsPerCategory <= 0 {
		s.MaxResultsPerCategory = 10
	}
	if s.FuzzyThreshold <= 0 {
		s.FuzzyThreshold = 0.2
	}
	if s.DesignationFuzzyLimit <= 0 {
		s.DesignationFuzzyLimit = 3
	}
	if s.SkillFuzzyLimit <= 0 {
		s.SkillFuzzyLimit = 5
	}
	if s.VectorSimilarityThreshold <= 0 {
		s.VectorSimilarityThreshold = 0.2
	}
	if s.VectorDesignationLimit <= 0 {
		s.VectorDesignationLimit = 5
	}
	if s.VectorSkillLimit <= 0 {
		s.VectorSkillLimit = 10
	}
}

func (v *Vocabulary) index() {
	v.designationsFold = make(map[string][]string, len(v.Designations))
	for k, titles := range v.Designations {
		v.designationsFold[fold(k)] = titles
	}

	v.aliases = make(map[string]string)
	for name, c := range v.SkillCategories {
		v.aliases[fold(name)] = name
		for _, a := range c.Aliases {
			v.aliases[fold(a)] = name
		}
	}

	v.technologiesFold = make(map[string]Technology, len(v.Technologies))
	for name, t := range v.Technologies {
		v.technologiesFold[fold(name)] = t
	}

	v.keywords = make(map[string]bool, len(v.DesignationKeywords))
	for _, k := range v.DesignationKeywords {
		v.keywords[fold(k)] = true
	}
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DesignationTitles looks term up in the abbreviation table: exact first, then case-insensitive.
func (v *Vocabulary) DesignationTitles(term string) ([]string, bool) {
	term = strings.TrimSpace(term)
	if titles, ok := v.Designations[term]; ok && len(titles) > 0 {
		return append([]string(nil), titles...), true
	}
	if titles, ok := v.designationsFold[fold(term)]; ok && len(titles) > 0 {
		return append([]string(nil), titles...), true
	}
	return nil, false
}

// IsAbbreviation reports whether term is in the abbreviation table.
func (v *Vocabulary) IsAbbreviation(term string) bool {
	_, ok := v.DesignationTitles(term)
	return ok
}

// HasDesignationKeyword reports whether any word of term is a designation keyword.
func (v *Vocabulary) HasDesignationKeyword(term string) bool {
	for _, w := range strings.Fields(fold(term)) {
		if v.keywords[w] || v.keywords[strings.TrimSuffix(w, "s")] {
			return true
		}
	}
	return false
}

// CategoryOf resolves a category name or alias to the canonical category name.
func (v *Vocabulary) CategoryOf(term string) (string, bool) {
	name, ok := v.aliases[fold(term)]
	return name, ok
}

// CategorySkills returns the skills of a category, in declared order.
func (v *Vocabulary) CategorySkills(category string) []string {
	return append([]string(nil), v.SkillCategories[category].Skills...)
}

// Technology returns the relations recorded for skill.
func (v *Vocabulary) Technology(skill string) (Technology, bool) {
	t, ok := v.technologiesFold[fold(skill)]
	return t, ok
}

// Implies reports whether experience in have credits want as a base technology.
// Implication is transitive: Next.js implies React, which implies JavaScript.
func (v *Vocabulary) Implies(have, want string) bool {
	seen := map[string]bool{}
	var walk func(s string, depth int) bool
	walk = func(s string, depth int) bool {
		if depth > 4 || seen[fold(s)] {
			return false
		}
		seen[fold(s)] = true
		t, ok := v.technologiesFold[fold(s)]
		if !ok {
			return false
		}
		for _, b := range t.Base {
			if strings.EqualFold(b, want) || walk(b, depth+1) {
				return true
			}
		}
		return false
	}
	return walk(have, 0)
}

// Siblings reports whether a and b are recorded as closely related alternatives.
func (v *Vocabulary) Siblings(a, b string) bool {
	t, ok := v.technologiesFold[fold(a)]
	if ok {
		for _, s := range t.Siblings {
			if strings.EqualFold(s, b) {
				return true
			}
		}
	}
	t, ok = v.technologiesFold[fold(b)]
	if ok {
		for _, s := range t.Siblings {
			if strings.EqualFold(s, a) {
				return true
			}
		}
	}
	return false
}

// AcceptedDesignations lists the titles that can fill a requested designation.
// The request may be a title or an abbreviation. The result is sorted and de-duplicated.
func (v *Vocabulary) AcceptedDesignations(requested string) []string {
	base := []string{strings.TrimSpace(requested)}
	if titles, ok := v.DesignationTitles(requested); ok {
		base = append(base, titles...)
	}

	set := make(map[string]bool)
	for _, title := range base {
		set[title] = true
		for k, compatible := range v.CompatibleDesignations {
			if strings.EqualFold(k, title) {
				for _, c := range compatible {
					set[c] = true
				}
			}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		if t != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// DesignationMatches reports whether a candidate holding designation can fill requested.
func (v *Vocabulary) DesignationMatches(requested, designation string) bool {
	for _, t := range v.AcceptedDesignations(requested) {
		if strings.EqualFold(t, designation) {
			return true
		}
	}
	return false
}
