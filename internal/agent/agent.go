// Package agent wraps the Genkit reasoning loop behind a small interface.
//
// The agent answers natural-language questions about the ARGO database using
// read-only tools (list tables, describe tables, run a SELECT). It returns
// the model's final text plus a trace of intermediate tool calls; the chat
// pipeline scans both for SQL, so the agent never needs to report a query
// through a structured channel.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/oceanlab/argonaut/internal/log"
)

// systemPrompt instructs the model. The aggregation guidance exists because
// the executor materializes full result sets; prompting is the primary guard
// against unbounded queries.
const systemPrompt = `You are a conversational assistant for an oceanographic database of ARGO float profiles.
The database has exactly two tables: profiles and measurements. Use the provided tools to inspect the schema and run SQL when a question needs data; answer general questions directly without tools.
When you write SQL, prefer aggregate operations (AVG, COUNT, MIN, MAX) with GROUP BY and LIMIT. Never run an unbounded "SELECT *" over a whole table.
Answer concisely in natural language.`

// Step is one intermediate tool call made during agent execution.
type Step struct {
	Tool   string
	Input  string
	Output string
}

// String renders the step for trace scanning and logging.
func (s Step) String() string {
	return fmt.Sprintf("tool=%s input=%s output=%s", s.Tool, s.Input, s.Output)
}

// Response is the complete result of one agent execution.
type Response struct {
	FinalText string // model's final text output
	Steps     []Step // intermediate tool calls, in execution order
}

// Config contains the required parameters for the agent.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	MaxTurns  int    // maximum agentic loop turns (<=0 uses 5)
	Tools     []ai.Tool
	Logger    log.Logger
}

// Agent is the language-model-driven reasoning loop.
// All configuration is captured immutably at construction; Agent is safe for
// concurrent use.
type Agent struct {
	g         *genkit.Genkit
	modelName string
	maxTurns  int
	toolRefs  []ai.ToolRef
	logger    log.Logger
}

// New creates an Agent from the given configuration.
func New(cfg Config) (*Agent, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	if len(cfg.Tools) == 0 {
		return nil, errors.New("at least one tool is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	logger.Info("agent initialized",
		"model", cfg.ModelName,
		"tools", strings.Join(names, ", "),
		"max_turns", maxTurns)

	return &Agent{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		maxTurns:  maxTurns,
		toolRefs:  toolRefs,
		logger:    logger,
	}, nil
}

// Execute runs the reasoning loop over the composed input and returns the
// final text plus the tool-call trace.
func (a *Agent) Execute(ctx context.Context, input string) (*Response, error) {
	resp, err := genkit.Generate(ctx, a.g,
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(input),
		ai.WithModelName(a.modelName),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
	)
	if err != nil {
		return nil, fmt.Errorf("generating agent response: %w", err)
	}

	steps := collectSteps(resp)
	a.logger.Debug("agent execution finished",
		"steps", len(steps),
		"response_len", len(resp.Text()))

	return &Response{
		FinalText: resp.Text(),
		Steps:     steps,
	}, nil
}

// Complete issues one direct completion with no tools or system prompt.
// Used by the SQL fallback stage of the chat pipeline.
func (a *Agent) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, a.g,
		ai.WithPrompt(prompt),
		ai.WithModelName(a.modelName),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return resp.Text(), nil
}

// collectSteps reconstructs the tool-call trace from the accumulated request
// messages. Genkit replays the whole loop in resp.Request.Messages, so tool
// requests and their responses appear there in execution order.
func collectSteps(resp *ai.ModelResponse) []Step {
	if resp == nil || resp.Request == nil {
		return nil
	}

	var steps []Step
	for _, msg := range resp.Request.Messages {
		if msg == nil {
			continue
		}
		for _, part := range msg.Content {
			switch {
			case part.ToolRequest != nil:
				steps = append(steps, Step{
					Tool:  part.ToolRequest.Name,
					Input: stringify(part.ToolRequest.Input),
				})
			case part.ToolResponse != nil:
				// Attach to the most recent unanswered request for this tool.
				for i := len(steps) - 1; i >= 0; i-- {
					if steps[i].Tool == part.ToolResponse.Name && steps[i].Output == "" {
						steps[i].Output = stringify(part.ToolResponse.Output)
						break
					}
				}
			}
		}
	}
	return steps
}

// stringify renders a tool input or output for the trace. JSON keeps embedded
// SQL strings intact for the extractor.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
