package ask

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/askdb/pkg/adapter"
	"github.com/m-mizutani/askdb/pkg/compose"
	"github.com/m-mizutani/askdb/pkg/corpus"
	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/sqlcheck"
	"github.com/m-mizutani/askdb/pkg/utils/logging"
)

// UseCase runs the question-to-answer pipeline: retrieve context from
// the corpus, compose a prompt, generate SQL, validate it, execute it,
// and optionally summarize the rows.
type UseCase struct {
	llm      adapter.LLM
	store    *corpus.Store
	composer *compose.Composer
	executor adapter.Executor

	schema       *model.Schema
	policy       *sqlcheck.Policy
	limits       corpus.RetrieveLimits
	completeOpts adapter.CompleteOptions
	summarize    bool
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithSchema enables identifier cross-checking and the schema summary
// section of the prompt
func WithSchema(schema *model.Schema) Option {
	return func(uc *UseCase) {
		uc.schema = schema
	}
}

// WithPolicy adds a Rego gate evaluated after validation
func WithPolicy(policy *sqlcheck.Policy) Option {
	return func(uc *UseCase) {
		uc.policy = policy
	}
}

// WithRetrieveLimits overrides how many artifacts of each kind are
// retrieved per question
func WithRetrieveLimits(limits corpus.RetrieveLimits) Option {
	return func(uc *UseCase) {
		uc.limits = limits
	}
}

// WithCompleteOptions overrides the completion sampling options
func WithCompleteOptions(opts adapter.CompleteOptions) Option {
	return func(uc *UseCase) {
		uc.completeOpts = opts
	}
}

// WithSummary enables the natural-language summary of the result rows
func WithSummary(enabled bool) Option {
	return func(uc *UseCase) {
		uc.summarize = enabled
	}
}

// New creates a new ask UseCase instance
func New(
	llm adapter.LLM,
	store *corpus.Store,
	composer *compose.Composer,
	executor adapter.Executor,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		llm:          llm,
		store:        store,
		composer:     composer,
		executor:     executor,
		limits:       corpus.DefaultRetrieveLimits(),
		completeOpts: adapter.DefaultCompleteOptions(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Generate runs the pipeline up to validated SQL: retrieve context,
// compose the prompt, complete, validate, and apply the policy gate.
// Validator and policy rejections come back as an Answer with invalid
// SQL and a reason rather than an error.
func (uc *UseCase) Generate(ctx context.Context, question string) (*Answer, error) {
	logger := logging.From(ctx)

	// Part numbers in the question may be sensitive identifiers; they
	// are masked before the text leaves the process.
	masked := sqlcheck.MaskPartNumbers(question)

	pctx, err := uc.store.Retrieve(ctx, masked, uc.limits)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve corpus context")
	}
	pctx.SchemaSummary = uc.schema.Summary()

	prompt, err := uc.composer.Compose(pctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to compose prompt")
	}

	answer := &Answer{
		Question: question,
		Prompt:   prompt,
	}

	raw := uc.complete(ctx, prompt)
	answer.Generated = sqlcheck.ExtractAndValidate(raw, uc.schema)
	if !answer.Generated.Valid {
		logger.Info("generated SQL rejected",
			"reason", answer.Generated.Reason)
		return answer, nil
	}

	if uc.policy != nil {
		reasons, err := uc.policy.Evaluate(ctx, answer.Generated, masked)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to evaluate policy")
		}
		if len(reasons) > 0 {
			answer.Generated.Valid = false
			answer.Generated.Reason = "denied by policy: " + strings.Join(reasons, "; ")
			answer.Denied = reasons
			logger.Info("generated SQL denied by policy", "reasons", reasons)
		}
	}

	return answer, nil
}

// Ask answers a free-text question over the target database: Generate,
// then execute and optionally summarize. Execution failures return the
// Answer built so far along with the error.
func (uc *UseCase) Ask(ctx context.Context, question string) (*Answer, error) {
	answer, err := uc.Generate(ctx, question)
	if err != nil {
		return nil, err
	}
	if !answer.Generated.Valid {
		return answer, nil
	}

	result, err := uc.executor.Execute(ctx, answer.Generated)
	if err != nil {
		return answer, err
	}
	answer.Result = result

	if uc.summarize {
		answer.Summary = uc.summarizeResult(ctx, question, result)
	}

	return answer, nil
}

// complete calls the completion backend. Transport and backend errors
// are translated to "no SQL generated" here; the validator downstream
// turns the empty text into a reasoned rejection.
func (uc *UseCase) complete(ctx context.Context, prompt string) string {
	text, err := uc.llm.Complete(ctx, prompt, uc.completeOpts)
	if err != nil {
		logging.From(ctx).Warn("completion backend failed, no SQL generated",
			"error", err)
		return ""
	}
	return text
}

// summarizeResult turns the row-set into a short natural-language
// explanation. Failure never fails the request; the rows already answer
// the question.
func (uc *UseCase) summarizeResult(ctx context.Context, question string, result *model.QueryResult) string {
	prompt, err := uc.composer.ComposeSummary(question, result)
	if err != nil {
		logging.From(ctx).Warn("failed to compose summary prompt", "error", err)
		return ""
	}

	summary, err := uc.llm.Complete(ctx, prompt, uc.completeOpts)
	if err != nil {
		logging.From(ctx).Warn("failed to summarize result", "error", err)
		return ""
	}

	return strings.TrimSpace(summary)
}
