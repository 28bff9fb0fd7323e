// Package chat implements the request-handling pipeline behind POST /chat.
//
// Per request: compose conversational context, invoke the agent, scan its
// output and tool trace for SQL, fall back through heuristic and
// model-constrained strategies when nothing was found, execute the resolved
// statement, shape the response, and write the turn back to the session.
//
// Every stage degrades instead of failing: a broken agent, an unparseable
// trace, or a bad query each leave the request on a simpler path. Respond
// returns an error only for invalid input.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/query"
	"github.com/oceanlab/argonaut/internal/session"
	"github.com/oceanlab/argonaut/internal/sqlextract"
)

// ErrEmptyInput indicates the request carried no question.
var ErrEmptyInput = errors.New("empty input")

// Invoker runs the language-model reasoning loop. Implemented by agent.Agent.
type Invoker interface {
	Execute(ctx context.Context, input string) (*Result, error)
}

// Result is what the pipeline consumes from an agent execution: final text
// plus stringified intermediate tool-call records.
type Result struct {
	FinalText string
	Steps     []string
}

// Completer issues one direct model completion. Implemented by agent.Agent.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SchemaRenderer renders the database schema as prompt text.
type SchemaRenderer interface {
	Render(ctx context.Context) (string, error)
}

// Runner executes a SELECT statement. Implemented by query.Executor.
type Runner interface {
	Run(ctx context.Context, sql string) (*query.Result, error)
}

// Request is one chat turn from the API layer.
type Request struct {
	Input     string
	SessionID string
	ForceSQL  bool // skip the agent stage, go straight to the fallback chain
}

// Response is the shaped result of one chat turn.
type Response struct {
	Output    string
	TableData []map[string]any
	GeoData   []map[string]any
	SQLQuery  string
}

// Config contains the pipeline dependencies.
//
// Invoker and Completer may be nil: that is the degraded mode entered when
// agent wiring failed at startup, and the pipeline then runs fallback-only.
type Config struct {
	Sessions  *session.Store
	Invoker   Invoker
	Completer Completer
	Schema    SchemaRenderer
	Executor  Runner
	Logger    log.Logger
}

// Service is the chat pipeline. Safe for concurrent use; concurrent requests
// against the same session race benignly on the bounded history (last writer
// wins, see the session package).
type Service struct {
	sessions   *session.Store
	invoker    Invoker
	completer  Completer
	schema     SchemaRenderer
	executor   Runner
	strategies []strategy
	logger     log.Logger
}

// New creates the pipeline service.
func New(cfg Config) (*Service, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Schema == nil {
		return nil, errors.New("schema renderer is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("query executor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Service{
		sessions:  cfg.Sessions,
		invoker:   cfg.Invoker,
		completer: cfg.Completer,
		schema:    cfg.Schema,
		executor:  cfg.Executor,
		logger:    logger,
	}
	s.strategies = []strategy{
		{name: "agent", resolve: s.agentStrategy},
		{name: "heuristic", resolve: s.heuristicStrategy},
		{name: "model", resolve: s.modelStrategy},
	}
	return s, nil
}

// Degraded reports whether the agent stage is unavailable and the pipeline
// answers through fallbacks only.
func (s *Service) Degraded() bool {
	return s.invoker == nil
}

// Respond handles one chat turn end to end.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrEmptyInput
	}
	sid := session.Normalize(req.SessionID)

	// Stage 0: run the agent over the composed conversational context.
	// Failures degrade to the fallback chain, never to the user.
	var agentOutput string
	var agentCandidates []string
	if !req.ForceSQL && s.invoker != nil {
		composed := composeInput(s.sessions.Turns(sid), req.Input)
		res, err := s.invoker.Execute(ctx, composed)
		if err != nil {
			s.logger.Warn("agent execution failed, continuing with fallbacks",
				"session_id", sid, "error", err)
		} else {
			agentOutput = res.FinalText
			sources := append([]string{res.FinalText}, res.Steps...)
			agentCandidates = sqlextract.Collect(sources...)
		}
	}

	// Stages 1-3: ordered strategies, short-circuiting on the first SQL.
	sqlQuery := s.resolveSQL(ctx, sid, req.Input, agentCandidates)

	resp := &Response{Output: agentOutput, SQLQuery: sqlQuery}

	// Execute only statements that pass the SELECT gate; anything else is
	// silently skipped. Execution failures count as "no results".
	if sqlextract.IsSelect(sqlQuery) {
		if res, err := s.executor.Run(ctx, sqlQuery); err != nil {
			s.logger.Warn("query execution failed, returning without results",
				"session_id", sid, "error", err)
		} else {
			s.shapeResult(resp, res, sid)
		}
	}

	if resp.Output == "" && resp.SQLQuery == "" && !looksLikeDataQuestion(req.Input) {
		resp.Output = generalReply
	}

	s.sessions.Append(sid,
		session.Turn{Role: session.RoleUser, Text: req.Input},
		session.Turn{Role: session.RoleAssistant, Text: resp.Output},
	)

	return resp, nil
}

// strategy is one stage of the fallback chain: a pure-ish resolver from the
// question (plus ambient state) to an optional SQL string.
type strategy struct {
	name    string
	resolve func(ctx context.Context, sid, question string, agentCandidates []string) string
}

// resolveSQL walks the strategy list in order and returns the first
// candidate, or "" if every stage comes up empty. It never fails: strategy
// errors are logged and treated as "no candidate".
func (s *Service) resolveSQL(ctx context.Context, sid, question string, agentCandidates []string) string {
	for _, st := range s.strategies {
		if sql := st.resolve(ctx, sid, question, agentCandidates); sql != "" {
			s.logger.Debug("sql resolved", "strategy", st.name, "session_id", sid)
			return sql
		}
	}
	return ""
}

func (s *Service) agentStrategy(_ context.Context, _, _ string, agentCandidates []string) string {
	if len(agentCandidates) == 0 {
		return ""
	}
	return agentCandidates[0]
}

func (s *Service) heuristicStrategy(_ context.Context, sid, question string, _ []string) string {
	return heuristicSQL(question, s.sessions.LastProfileIDs(sid))
}

// modelStrategy issues one schema-grounded completion constrained to emit
// only SQL, then re-runs the extractor over the reply.
func (s *Service) modelStrategy(ctx context.Context, sid, question string, _ []string) string {
	if s.completer == nil {
		return ""
	}
	rendered, err := s.schema.Render(ctx)
	if err != nil {
		s.logger.Warn("schema render failed, skipping model fallback",
			"session_id", sid, "error", err)
		return ""
	}
	reply, err := s.completer.Complete(ctx, fallbackPrompt(rendered, question))
	if err != nil {
		s.logger.Warn("fallback SQL generation failed",
			"session_id", sid, "error", err)
		return ""
	}
	if candidates := sqlextract.Statements(reply); len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// shapeResult fills table/geo payloads, synthesizes a summary when the agent
// produced none, and persists profile IDs for follow-up questions.
func (s *Service) shapeResult(resp *Response, res *query.Result, sid string) {
	resp.TableData = res.Rows
	if res.HasGeo() {
		resp.GeoData = res.Rows
	}
	if resp.Output == "" {
		resp.Output = summarize(res)
	}
	if res.HasColumns("profile_id") {
		s.sessions.SetLastProfileIDs(sid, res.ProfileIDs())
	}
}

// composeInput builds the lightweight conversational context block handed to
// the agent.
func composeInput(turns []session.Turn, input string) string {
	var b strings.Builder
	if len(turns) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range turns {
			prefix := "User:"
			if t.Role == session.RoleAssistant {
				prefix = "Assistant:"
			}
			fmt.Fprintf(&b, "%s %s\n", prefix, t.Text)
		}
	}
	fmt.Fprintf(&b, "User: %s\n", input)
	b.WriteString("Please answer concisely and produce SQL if needed.")
	return b.String()
}

// fallbackPrompt is the stage-3 prompt: schema plus question, SQL only.
func fallbackPrompt(renderedSchema, question string) string {
	return "You are a SQL assistant for a PostgreSQL database.\n" +
		"Given the database schema and the user's question, write a single valid SQL SELECT query.\n" +
		"Constraints:\n" +
		"- Output ONLY the SQL SELECT, no commentary.\n" +
		"- Use correct table and column names from the schema.\n\n" +
		"Schema:\n" + renderedSchema + "\n\n" +
		"Question: " + question + "\n\n" +
		"SQL:"
}
