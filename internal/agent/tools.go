package agent

// tools.go defines the read-only database tools exposed to the model.
//
// Provides 3 tools:
//   - listTables: names of the queryable tables
//   - describeTables: full column listing rendered from information_schema
//   - runQuery: executes one SELECT and returns rows as JSON
//
// All tools go through the shared SELECT-gated executor; the model cannot
// reach writes through this surface.

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/query"
	"github.com/oceanlab/argonaut/internal/schema"
)

// toolRowLimit caps how many rows a tool observation feeds back to the model.
// Larger results still execute; the observation is just clipped.
const toolRowLimit = 50

// RegisterDatabaseTools registers the database read tools with Genkit and
// returns them for the agent configuration.
func RegisterDatabaseTools(g *genkit.Genkit, intro *schema.Introspector, exec *query.Executor, logger log.Logger) []ai.Tool {
	if logger == nil {
		logger = log.NewNop()
	}

	listTables := genkit.DefineTool(
		g,
		"listTables",
		"List the tables available in the ARGO oceanographic database. "+
			"Returns table names only; use describeTables for columns.",
		func(ctx *ai.ToolContext, _ struct{}) (string, error) {
			tables, err := intro.Tables(ctx)
			if err != nil {
				return "", fmt.Errorf("listing tables: %w", err)
			}
			names := make([]string, len(tables))
			for i, t := range tables {
				names[i] = t.Name
			}
			return strings.Join(names, ", "), nil
		},
	)

	describeTables := genkit.DefineTool(
		g,
		"describeTables",
		"Describe the schema of the profiles and measurements tables, "+
			"including column names and types. Use this before writing SQL.",
		func(ctx *ai.ToolContext, _ struct{}) (string, error) {
			rendered, err := intro.Render(ctx)
			if err != nil {
				return "", fmt.Errorf("rendering schema: %w", err)
			}
			return rendered, nil
		},
	)

	runQuery := genkit.DefineTool(
		g,
		"runQuery",
		"Execute a single SQL SELECT statement against the ARGO database and "+
			"return the rows as JSON. Only SELECT is allowed. Prefer aggregates "+
			"and LIMIT clauses to keep results small.",
		func(ctx *ai.ToolContext, input struct {
			Query string `json:"query" jsonschema_description:"A complete SQL SELECT statement. Statements that do not start with SELECT are rejected."`
		},
		) (string, error) {
			res, err := exec.Run(ctx, input.Query)
			if err != nil {
				logger.Debug("runQuery tool failed", "error", err)
				return "", fmt.Errorf("running query: %w", err)
			}
			return renderToolResult(res), nil
		},
	)

	return []ai.Tool{listTables, describeTables, runQuery}
}

// renderToolResult serializes a result for the model, clipping long results.
func renderToolResult(res *query.Result) string {
	if res.Empty() {
		return "no rows"
	}

	rows := res.Rows
	clipped := false
	if len(rows) > toolRowLimit {
		rows = rows[:toolRowLimit]
		clipped = true
	}

	b, err := json.Marshal(rows)
	if err != nil {
		return fmt.Sprintf("%d rows (unserializable: %v)", len(res.Rows), err)
	}
	out := string(b)
	if clipped {
		out += fmt.Sprintf("\n(%d of %d rows shown)", toolRowLimit, len(res.Rows))
	}
	return out
}
