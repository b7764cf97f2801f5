package fuzzy

import (
	"strings"
	"unicode"

	"github.com/jonathan/resourcewise/internal/vocabulary"
)

// maxSkillTermLen bounds the shape rule for skill-like terms.
const maxSkillTermLen = 30

// Buckets is a partition of terms. Every input term appears in exactly one bucket.
type Buckets struct {
	Designation []string `json:"designation"`
	Skill       []string `json:"skill"`
	Unknown     []string `json:"unknown"`
}

// All returns every term across buckets.
func (b Buckets) All() []string {
	out := make([]string, 0, len(b.Designation)+len(b.Skill)+len(b.Unknown))
	out = append(out, b.Designation...)
	out = append(out, b.Skill...)
	return append(out, b.Unknown...)
}

// Partition assigns each distinct term to the designation, skill or unknown bucket.
// Vocabulary membership is checked before shape rules, so "AWS" (a category alias)
// is a skill even though it is short and upper-case.
func Partition(terms []string, vocab *vocabulary.Vocabulary) Buckets {
	var b Buckets
	for _, term := range dedupe(terms) {
		switch {
		case isKnownDesignation(term, vocab):
			b.Designation = append(b.Designation, term)
		case isKnownSkill(term, vocab):
			b.Skill = append(b.Skill, term)
		case looksLikeDesignation(term, vocab):
			b.Designation = append(b.Designation, term)
		case looksLikeSkill(term):
			b.Skill = append(b.Skill, term)
		default:
			b.Unknown = append(b.Unknown, term)
		}
	}
	return b
}

func isKnownDesignation(term string, vocab *vocabulary.Vocabulary) bool {
	if vocab.IsAbbreviation(term) {
		return true
	}
	if s, ok := singular(term); ok && vocab.IsAbbreviation(s) {
		return true
	}
	return false
}

func isKnownSkill(term string, vocab *vocabulary.Vocabulary) bool {
	_, ok := vocab.CategoryOf(term)
	return ok
}

func looksLikeDesignation(term string, vocab *vocabulary.Vocabulary) bool {
	if vocab.HasDesignationKeyword(term) {
		return true
	}
	if isShortUpper(term) {
		return true
	}
	if s, ok := singular(term); ok && isShortUpper(s) {
		return true
	}
	return false
}

// looksLikeSkill accepts digit-free names such as "kafka", "React Native",
// "node.js" or "C#".
func looksLikeSkill(term string) bool {
	t := strings.TrimSpace(term)
	if t == "" || len(t) > maxSkillTermLen {
		return false
	}
	hasLetter := false
	for _, r := range t {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == ' ' || strings.ContainsRune(".-+#", r):
		default:
			return false
		}
	}
	return hasLetter
}

// isShortUpper matches all-caps tokens of at most four letters, like "SSE" or "TDO".
func isShortUpper(term string) bool {
	if term == "" || len(term) > 4 {
		return false
	}
	for _, r := range term {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// singular strips a plural suffix: "TLs" -> "TL", "SSEs" -> "SSE", "leads" -> "lead".
func singular(term string) (string, bool) {
	t := strings.TrimSpace(term)
	if len(t) > 1 && (strings.HasSuffix(t, "s") || strings.HasSuffix(t, "S")) {
		return t[:len(t)-1], true
	}
	return "", false
}
