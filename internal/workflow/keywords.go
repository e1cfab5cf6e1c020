package workflow

import "strings"

// ParseKeywords splits comma separated input, trimming entries and dropping empty ones.
func ParseKeywords(input string) []string {
	out := []string{}
	for _, part := range strings.Split(input, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
