package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/oceanlab/argonaut/db"
	"github.com/oceanlab/argonaut/internal/agent"
	"github.com/oceanlab/argonaut/internal/chat"
	"github.com/oceanlab/argonaut/internal/config"
	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/query"
	"github.com/oceanlab/argonaut/internal/schema"
	"github.com/oceanlab/argonaut/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	a.Sessions = session.NewStore(cfg.HistoryWindow, logger)
	a.introspector = schema.New(pool, logger)
	a.executor = query.NewExecutor(pool, cfg.MaxResultRows, logger)

	// Agent wiring is best-effort: a missing API key or unreachable model
	// backend leaves the service in degraded (fallback-only) mode instead of
	// failing startup.
	var invoker chat.Invoker
	var completer chat.Completer
	ag, g, err := provideAgent(ctx, cfg, a.introspector, a.executor, logger)
	if err != nil {
		logger.Warn("agent initialization failed, running in degraded mode", "error", err)
	} else {
		a.Genkit = g
		invoker = agentInvoker{agent: ag}
		completer = ag
	}

	svc, err := chat.New(chat.Config{
		Sessions:  a.Sessions,
		Invoker:   invoker,
		Completer: completer,
		Schema:    a.introspector,
		Executor:  a.executor,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat service: %w", err)
	}
	a.Chat = svc

	return a, nil
}

// provideOtelShutdown exports Genkit traces over OTLP HTTP when an endpoint
// is configured. Returns a shutdown func; no-op when tracing is disabled.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Genkit's TracerProvider reads these at initialization.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideAgent initializes Genkit with the configured provider and builds the
// database-grounded agent.
func provideAgent(ctx context.Context, cfg *config.Config, intro *schema.Introspector, exec *query.Executor, logger log.Logger) (*agent.Agent, *genkit.Genkit, error) {
	if cfg.Provider == config.ProviderGemini && os.Getenv("GEMINI_API_KEY") == "" {
		return nil, nil, fmt.Errorf("%w: GEMINI_API_KEY not set", config.ErrMissingAPIKey)
	}

	g, modelName, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	tools := agent.RegisterDatabaseTools(g, intro, exec, logger)

	ag, err := agent.New(agent.Config{
		Genkit:    g,
		ModelName: modelName,
		MaxTurns:  cfg.MaxTurns,
		Tools:     tools,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating agent: %w", err)
	}
	return ag, g, nil
}

// provideGenkit initializes Genkit with the configured AI provider and
// returns the provider-qualified model name.
// Supports gemini (default) and ollama providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, string, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, "", errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, "ollama/" + cfg.ModelName, nil

	default: // gemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, "", errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
		return g, "googleai/" + cfg.ModelName, nil
	}
}
