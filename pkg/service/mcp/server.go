package mcp

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/m-mizutani/askdb/pkg/usecase/ask"
	"github.com/m-mizutani/askdb/pkg/usecase/train"
	"github.com/m-mizutani/askdb/pkg/utils/logging"
)

// Server exposes the question pipeline and corpus training as MCP
// tools over stdio, so agent hosts can query the database through the
// same validation path as the CLI.
type Server struct {
	mcp     *mcp.Server
	asker   *ask.UseCase
	trainer *train.UseCase
}

// New creates an MCP server wrapping the given usecases
func New(asker *ask.UseCase, trainer *train.UseCase) *Server {
	impl := &mcp.Implementation{
		Name:    "askdb",
		Version: "0.1.0",
	}

	s := &Server{
		mcp:     mcp.NewServer(impl, nil),
		asker:   asker,
		trainer: trainer,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, askTool, s.handleAsk)
	mcp.AddTool(s.mcp, trainTool, s.handleTrain)
}

// Run serves MCP over stdio until the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	logging.From(ctx).Info("starting MCP server on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

var askTool = &mcp.Tool{
	Name:        "ask_database",
	Description: "Answer a natural-language question over the configured database. Returns the generated SQL and the result rows. Only read-only queries are executed.",
}

var trainTool = &mcp.Tool{
	Name:        "train_corpus",
	Description: "Store a question/SQL pair, a table definition, or a documentation note in the retrieval corpus to improve future answers.",
}

// AskInput defines the input parameters for ask_database
type AskInput struct {
	Question string `json:"question" jsonschema:"The question to answer, in natural language"`
}

// TrainInput defines the input parameters for train_corpus
type TrainInput struct {
	DDL           string `json:"ddl,omitempty" jsonschema:"A table definition to store"`
	Documentation string `json:"documentation,omitempty" jsonschema:"A free-text note about the data"`
	Question      string `json:"question,omitempty" jsonschema:"An exemplar question (requires sql)"`
	SQL           string `json:"sql,omitempty" jsonschema:"The SQL answering the exemplar question"`
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, any, error) {
	answer, err := s.asker.Ask(ctx, input.Question)
	if err != nil {
		return textResult("query failed: "+err.Error(), true), nil, nil
	}

	if !answer.Generated.Valid {
		return textResult("no query executed: "+answer.Generated.Reason, true), nil, nil
	}

	var out strings.Builder
	if err := answer.Write(&out); err != nil {
		return nil, nil, err
	}
	return textResult(out.String(), false), nil, nil
}

func (s *Server) handleTrain(ctx context.Context, req *mcp.CallToolRequest, input TrainInput) (*mcp.CallToolResult, any, error) {
	if (input.Question == "") != (input.SQL == "") {
		return textResult("question and sql must be given together", true), nil, nil
	}

	var stored int
	if input.DDL != "" {
		if _, err := s.trainer.TrainDDL(ctx, input.DDL); err != nil {
			return nil, nil, err
		}
		stored++
	}
	if input.Documentation != "" {
		if _, err := s.trainer.TrainDocumentation(ctx, input.Documentation); err != nil {
			return nil, nil, err
		}
		stored++
	}
	if input.Question != "" {
		if _, err := s.trainer.TrainExemplar(ctx, input.Question, input.SQL); err != nil {
			return nil, nil, err
		}
		stored++
	}

	if stored == 0 {
		return textResult("nothing to store: give ddl, documentation or question/sql", true), nil, nil
	}
	return textResult("stored", false), nil, nil
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}
