package sqlextract

import (
	"reflect"
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "no sql",
			text: "The warmest profiles are in the Arabian Sea.",
			want: nil,
		},
		{
			name: "single statement with terminator",
			text: "Here is the query: SELECT * FROM profiles LIMIT 5; hope that helps",
			want: []string{"SELECT * FROM profiles LIMIT 5;"},
		},
		{
			name: "statement runs to end of text",
			text: "SELECT profile_id FROM profiles",
			want: []string{"SELECT profile_id FROM profiles"},
		},
		{
			name: "lowercase select",
			text: "select avg(temperature_celsius) from measurements;",
			want: []string{"select avg(temperature_celsius) from measurements;"},
		},
		{
			name: "multiline statement",
			text: "SELECT profile_id,\n  latitude,\n  longitude\nFROM profiles;",
			want: []string{"SELECT profile_id,\n  latitude,\n  longitude\nFROM profiles;"},
		},
		{
			name: "truncates at observation marker",
			text: "Action Input: SELECT COUNT(*) FROM profiles\nObservation: 412 rows",
			want: []string{"SELECT COUNT(*) FROM profiles"},
		},
		{
			name: "truncates at thought marker",
			text: "SELECT float_wmo_id FROM profiles\nThought: now I know the answer",
			want: []string{"SELECT float_wmo_id FROM profiles"},
		},
		{
			name: "truncates at final answer marker",
			text: "SELECT 1\nFinal Answer: there is one profile",
			want: []string{"SELECT 1"},
		},
		{
			name: "truncates at earliest marker",
			text: "SELECT 1\nThought: hmm\nObservation: 1",
			want: []string{"SELECT 1"},
		},
		{
			name: "multiple statements keep order",
			text: "First SELECT a FROM t; then SELECT b FROM u;",
			want: []string{"SELECT a FROM t;", "SELECT b FROM u;"},
		},
		{
			name: "duplicates removed by trimmed equality",
			text: "SELECT a FROM t;\nsome prose\nSELECT a FROM t;",
			want: []string{"SELECT a FROM t;"},
		},
		{
			name: "selected is not a select token",
			text: "I selected the rows manually.",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Statements(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Statements() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// Every returned string must start with SELECT regardless of input shape.
func TestStatements_AlwaysSelectPrefixed(t *testing.T) {
	inputs := []string{
		"Observation: SELECT is a keyword; Thought: SELECT x FROM y;",
		"```sql\nSELECT * FROM measurements;\n```",
		"Thought:Thought:SELECT;",
		"noise select; select ; SELECT\n;",
	}
	for _, in := range inputs {
		for _, s := range Statements(in) {
			if !strings.HasPrefix(strings.ToUpper(s), "SELECT") {
				t.Errorf("Statements(%q) returned non-SELECT %q", in, s)
			}
		}
	}
}

func TestCollect_DeduplicatesAcrossSources(t *testing.T) {
	agentText := "Final answer uses SELECT a FROM t;"
	step1 := "tool=run_query input=SELECT a FROM t;"
	step2 := "tool=run_query input=SELECT b FROM u;"

	got := Collect(agentText, step1, step2)
	want := []string{"SELECT a FROM t;", "SELECT b FROM u;"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Collect() = %#v, want %#v", got, want)
	}
}

func TestIsSelect(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from profiles  ", true},
		{"DELETE FROM profiles", false},
		{"", false},
		{"WITH t AS (SELECT 1) SELECT * FROM t", false}, // gate is prefix-only
	}
	for _, tt := range tests {
		if got := IsSelect(tt.in); got != tt.want {
			t.Errorf("IsSelect(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
