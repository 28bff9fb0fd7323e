// Package sqlextract scans free-form model output for SELECT statements.
//
// Language-model agents emit SQL in unpredictable places: the final answer,
// reasoning traces, stringified tool calls. This package is the single place
// that turns such text into candidate statements, with the termination
// markers enumerated explicitly rather than scattered through the pipeline.
package sqlextract

import (
	"regexp"
	"strings"
)

// selectPattern captures from each SELECT token greedily through the next
// statement terminator or end of text. Case-insensitive, dot matches newline.
var selectPattern = regexp.MustCompile(`(?is)\bselect\b.*?(?:;|$)`)

// traceMarkers are ReAct-style reasoning artifacts that terminate a capture:
// anything after them belongs to the agent's scratchpad, not the SQL.
var traceMarkers = []string{
	"Observation:",
	"Thought:",
	"Final Answer:",
}

// Statements returns the distinct SELECT statements found in text, in first
// occurrence order. Captures are truncated at the first trace marker, trimmed,
// and dropped unless they still start with SELECT case-insensitively.
// No dialect validation is performed; malformed SQL surfaces at execution.
func Statements(text string) []string {
	return collectInto(nil, make(map[string]struct{}), text)
}

// Collect scans several text sources in order (e.g. agent output followed by
// stringified intermediate steps) and deduplicates across all of them.
func Collect(sources ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, src := range sources {
		out = collectInto(out, seen, src)
	}
	return out
}

func collectInto(out []string, seen map[string]struct{}, text string) []string {
	if text == "" {
		return out
	}
	for _, capture := range selectPattern.FindAllString(text, -1) {
		for _, marker := range traceMarkers {
			if i := strings.Index(capture, marker); i >= 0 {
				capture = capture[:i]
			}
		}
		capture = strings.TrimSpace(capture)
		if !strings.HasPrefix(strings.ToUpper(capture), "SELECT") {
			continue
		}
		if _, dup := seen[capture]; dup {
			continue
		}
		seen[capture] = struct{}{}
		out = append(out, capture)
	}
	return out
}

// IsSelect reports whether s, after trimming, starts with SELECT
// case-insensitively. This is the executor's only safety gate; it is not a
// SQL-injection defense.
func IsSelect(s string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "SELECT")
}
