package engine

import (
	"regexp"
	"strings"
)

const maxInsights = 5

// bullet or numbered list markers the local models actually emit.
var insightLine = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)

// ExtractInsights pulls bulleted or numbered lines out of a summary. Runs on
// the reduce output, or on the single partial summary when no reduce call was
// made. Returns nil when the text carries no list at all.
func ExtractInsights(text string) []string {
	var insights []string
	for _, line := range strings.Split(text, "\n") {
		m := insightLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		insight := strings.TrimSpace(m[1])
		if insight == "" {
			continue
		}
		insights = append(insights, insight)
		if len(insights) == maxInsights {
			break
		}
	}
	return insights
}
