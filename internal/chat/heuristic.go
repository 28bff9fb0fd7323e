package chat

// heuristic.go implements the rule-based SQL fallback. It covers the two
// question shapes the interface is most often asked when the model misses:
// average temperature rankings and "where are those floats" follow-ups.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const defaultTopN = 5

var topNPattern = regexp.MustCompile(`(?i)top\s+(\d+)`)

// heuristicSQL maps a recognized question shape to a SQL template, or returns
// "" when the question matches neither shape. The location shape additionally
// requires profile IDs from an earlier turn; without them there is nothing to
// locate and the stage passes.
func heuristicSQL(question string, lastProfileIDs []int64) string {
	q := strings.ToLower(question)

	if (strings.Contains(q, "average") && strings.Contains(q, "temperature")) ||
		(strings.Contains(q, "avg") && strings.Contains(q, "temp")) {
		return fmt.Sprintf(
			"SELECT m.profile_id, ROUND(AVG(m.temperature_celsius)::numeric, 2) AS avg_temperature_celsius "+
				"FROM measurements m GROUP BY m.profile_id "+
				"ORDER BY avg_temperature_celsius DESC LIMIT %d;",
			topN(q, defaultTopN))
	}

	if strings.Contains(q, "where are") || strings.Contains(q, "location") || strings.Contains(q, "located") {
		if len(lastProfileIDs) == 0 {
			return ""
		}
		return fmt.Sprintf(
			"SELECT DISTINCT ON (p.profile_id) p.profile_id, p.latitude, p.longitude, p.profile_date, p.profile_time "+
				"FROM profiles p WHERE p.profile_id IN (%s) "+
				"ORDER BY p.profile_id, p.profile_date DESC, p.profile_time DESC;",
			joinIDs(lastProfileIDs))
	}

	return ""
}

// topN extracts N from a "top N" phrase, falling back to def.
func topN(question string, def int) int {
	m := topNPattern.FindStringSubmatch(question)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return def
	}
	return n
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
