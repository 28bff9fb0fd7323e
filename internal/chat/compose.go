package chat

// compose.go synthesizes user-facing text when the agent produced none.
// Summaries are keyed on result shape: known column combinations get a
// readable preview, everything else a generic note.

import (
	"fmt"
	"strings"

	"github.com/oceanlab/argonaut/internal/query"
)

// summaryPreviewRows bounds how many rows a synthesized summary names.
const summaryPreviewRows = 3

const generalReply = "I'm a conversational assistant for an ARGO float oceanographic database. " +
	"Ask me about float profiles, temperature, salinity, or where profiles are located."

// summarize produces a short natural-language summary for a fallback result.
func summarize(res *query.Result) string {
	if res.Empty() {
		return "The query returned no results."
	}

	switch {
	case res.HasColumns("profile_id", "avg_temperature_celsius"):
		var parts []string
		for _, row := range preview(res.Rows) {
			id, okID := asInt64(row["profile_id"])
			temp, okTemp := asFloat(row["avg_temperature_celsius"])
			if !okID || !okTemp {
				continue
			}
			parts = append(parts, fmt.Sprintf("profile %d (%.2f°C)", id, temp))
		}
		if len(parts) > 0 {
			return "Top results by average temperature: " + strings.Join(parts, ", ") + "."
		}

	case res.HasColumns("profile_id", "latitude", "longitude"):
		var parts []string
		for _, row := range preview(res.Rows) {
			id, okID := asInt64(row["profile_id"])
			lat, okLat := asFloat(row["latitude"])
			lon, okLon := asFloat(row["longitude"])
			if !okID || !okLat || !okLon {
				continue
			}
			parts = append(parts, fmt.Sprintf("profile %d at (%.3f, %.3f)", id, lat, lon))
		}
		if len(parts) > 0 {
			return "Locations for the selected profiles: " + strings.Join(parts, ", ") + "."
		}
	}

	return fmt.Sprintf("Showing %d result rows generated from SQL.", len(res.Rows))
}

func preview(rows []map[string]any) []map[string]any {
	if len(rows) > summaryPreviewRows {
		return rows[:summaryPreviewRows]
	}
	return rows
}

// dataKeywords marks questions that are plausibly about the database. Used
// only to pick a canned reply when every stage came up empty; a false
// negative just changes which generic message the user sees.
var dataKeywords = []string{
	"temperature", "salinity", "pressure", "oxygen", "chlorophyll", "nitrate",
	"profile", "float", "measurement", "ocean",
	"average", "avg", "count", "how many", "top",
	"latitude", "longitude", "location", "where",
	"data", "table", "query", "sql", "select",
}

func looksLikeDataQuestion(input string) bool {
	q := strings.ToLower(input)
	for _, kw := range dataKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// asFloat normalizes the numeric types pgx hands back for floating columns.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
