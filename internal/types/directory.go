package types

// Match is a directory entry returned by a ranked lookup.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// MatchNames returns the names of matches in order.
func MatchNames(matches []Match) []string {
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}
	return names
}
