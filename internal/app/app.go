// Package app provides application initialization and dependency wiring.
//
// Setup builds the full service graph: configuration, database pool and
// migrations, Genkit with the configured model provider, the database tools
// and agent, and the chat pipeline. Agent wiring is allowed to fail; the app
// then runs in degraded mode where the chat pipeline answers through the
// heuristic fallback only.
package app

import (
	"context"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceanlab/argonaut/internal/agent"
	"github.com/oceanlab/argonaut/internal/chat"
	"github.com/oceanlab/argonaut/internal/config"
	"github.com/oceanlab/argonaut/internal/ingest"
	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/query"
	"github.com/oceanlab/argonaut/internal/schema"
	"github.com/oceanlab/argonaut/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit // nil in degraded mode
	Pool     *pgxpool.Pool
	Sessions *session.Store
	Chat     *chat.Service

	introspector *schema.Introspector
	executor     *query.Executor

	otelCleanup func()
}

// Close releases all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
	return nil
}

// NewIngestor builds the NetCDF ingestion pipeline on the shared pool.
func (a *App) NewIngestor() *ingest.Ingestor {
	return ingest.New(
		ingest.NewNetCDFReader(a.Logger),
		ingest.NewPGStore(a.Pool),
		a.Logger,
	)
}

// agentInvoker adapts agent.Agent to the chat pipeline's consumer interface,
// flattening tool-call steps to scannable strings.
type agentInvoker struct {
	agent *agent.Agent
}

func (inv agentInvoker) Execute(ctx context.Context, input string) (*chat.Result, error) {
	resp, err := inv.agent.Execute(ctx, input)
	if err != nil {
		return nil, err
	}
	steps := make([]string, len(resp.Steps))
	for i, s := range resp.Steps {
		steps[i] = s.String()
	}
	return &chat.Result{FinalText: resp.FinalText, Steps: steps}, nil
}
