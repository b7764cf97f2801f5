package llm

import "strings"

// CleanJSONBlock removes markdown code block wrappers from model output.
// Models often wrap replies in ```json ... ``` or ```sql ... ``` even when told not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// ExtractJSONObject returns the outermost {...} span of text, skipping any preamble.
// It returns the cleaned input unchanged when no object is found.
func ExtractJSONObject(text string) string {
	text = CleanJSONBlock(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

// CleanSQL strips fences, a leading "sql" label and trailing semicolons from a synthesized query.
func CleanSQL(text string) string {
	text = CleanJSONBlock(text)
	if len(text) > 4 && strings.EqualFold(text[:4], "sql\n") {
		text = text[4:]
	}
	text = strings.TrimSpace(text)
	return strings.TrimSpace(strings.TrimRight(text, "; \n\t"))
}
