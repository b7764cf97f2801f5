package fuzzy

import (
	"regexp"
	"strings"

	"github.com/jonathan/resourcewise/internal/llm"
)

// Precise phrasings: explicit project status, allocation state or named skills.
var precisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bworking on\s+(active|customer|internal|completed)\s+projects?\b`),
	regexp.MustCompile(`(?i)\bassigned to\s+projects?\b`),
	regexp.MustCompile(`(?i)\ballocated to\s+projects?\b`),
	regexp.MustCompile(`(?i)\b(overallocated|over-allocated|underutilized|under-utilized)\s+employees?\b`),
	regexp.MustCompile(`(?i)\bavailable\s+employees?\s*\??$`),
	regexp.MustCompile(`(?i)\bemployees?\s+with\s+(react|java|python|javascript|aws|docker)\s+skills?\b`),
}

// Fuzzy term extractors. Capturing group 1, when present, is the term; otherwise the whole match.
var fuzzyPatterns = []*regexp.Regexp{
	// team phrases come first so "backend team" wins over "backend"
	regexp.MustCompile(`(?i)\b((?:design|qa|backend|frontend|mobile|cloud|data|devops)\s+team)\b`),
	regexp.MustCompile(`(?i)\b(frontend|front-end|backend|back-end|mobile|cloud|data|web|design|analytics|devops|security|testing)\b`),
	regexp.MustCompile(`(?i)\b(senior|junior|experienced|lead|leads|management|leadership|expert|experts|specialist|specialists)\b`),
	regexp.MustCompile(`\b(SSE|TL|PM|QA|SE|SDE|BA|UX|ARCH|PE|TDO|PSE)s?\b`),
	regexp.MustCompile(`(?i)\bdevelopers?\s+with\s+(\w+)\s+experience\b`),
	regexp.MustCompile(`(?i)\bwho knows\s+(\w+)`),
	regexp.MustCompile(`(?i)\bexperts?\s+in\s+(\w+)`),
	regexp.MustCompile(`(?i)\b(good at|skilled in|familiar with|proficient in)\b`),
}

var namedSkills = []string{"react", "java", "python", "javascript", "aws", "docker", "kubernetes"}

// ClassifyRules is the deterministic classifier used when the language model is unavailable.
// Precise patterns are checked first and win outright.
func ClassifyRules(text string) *llm.Classification {
	for _, p := range precisePatterns {
		if p.MatchString(text) {
			return &llm.Classification{Label: llm.LabelPrecise, Terms: []string{}, Reasoning: "matched precise pattern"}
		}
	}

	terms := ExtractTerms(text)
	if len(terms) == 0 {
		return &llm.Classification{Label: llm.LabelPrecise, Terms: []string{}, Reasoning: "no vague vocabulary"}
	}
	return &llm.Classification{Label: llm.LabelFuzzy, Terms: terms, Reasoning: "matched fuzzy patterns"}
}

// ExtractTerms returns the vague terms in text, in order of first appearance per pattern, without duplicates.
func ExtractTerms(text string) []string {
	var terms []string
	for _, p := range fuzzyPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			term := m[0]
			if len(m) > 1 && m[1] != "" {
				term = m[1]
			}
			terms = append(terms, strings.TrimSpace(term))
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "developers") && !containsAny(lower, namedSkills) {
		terms = append(terms, "developers")
	}

	return dropCovered(dedupe(terms))
}

// dropCovered removes single words already covered by an extracted phrase, so
// "backend team" does not also yield "backend".
func dropCovered(terms []string) []string {
	var phrases []string
	for _, t := range terms {
		if strings.Contains(t, " ") {
			phrases = append(phrases, strings.ToLower(t))
		}
	}
	if len(phrases) == 0 {
		return terms
	}

	out := terms[:0:0]
	for _, t := range terms {
		covered := false
		if !strings.Contains(t, " ") {
			for _, p := range phrases {
				for _, w := range strings.Fields(p) {
					if w == strings.ToLower(t) {
						covered = true
					}
				}
			}
		}
		if !covered {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
