package compose

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pkoukk/tiktoken-go"

	"github.com/m-mizutani/askdb/pkg/model"
)

//go:embed prompt/generate.md
var generatePromptRaw string

//go:embed prompt/summarize.md
var summarizePromptRaw string

var (
	generateTmpl  = template.Must(template.New("generate").Parse(generatePromptRaw))
	summarizeTmpl = template.Must(template.New("summarize").Parse(summarizePromptRaw))
)

const (
	// DefaultTokenBudget bounds the total generation prompt size
	DefaultTokenBudget = 4000

	// maxSummaryRows caps how many result rows the summarizer sees
	maxSummaryRows = 20
)

// Composer renders bounded prompts from retrieved context. Composition
// is deterministic: identical input produces an identical prompt.
type Composer struct {
	budget int
	tkm    *tiktoken.Tiktoken
}

type Option func(*Composer)

// WithTokenBudget overrides the maximum prompt size in tokens
func WithTokenBudget(budget int) Option {
	return func(c *Composer) {
		c.budget = budget
	}
}

// New creates a Composer. Token counting uses the cl100k_base encoding.
func New(opts ...Option) (*Composer, error) {
	tkm, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load token encoding")
	}

	c := &Composer{
		budget: DefaultTokenBudget,
		tkm:    tkm,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TokenCount returns the number of tokens in the text
func (c *Composer) TokenCount(text string) int {
	return len(c.tkm.Encode(text, nil, nil))
}

// Compose renders the generation prompt. When the full context exceeds
// the budget, retrieved items are dropped lowest-similarity-first in
// reverse priority order: exemplars, then documentation, then schema
// facts. Schema facts go last because they carry the table shapes the
// model must not hallucinate.
func (c *Composer) Compose(pctx *model.PromptContext) (string, error) {
	trimmed := *pctx

	for {
		prompt, err := render(generateTmpl, &trimmed)
		if err != nil {
			return "", err
		}
		if c.TokenCount(prompt) <= c.budget {
			return prompt, nil
		}
		if !dropOne(&trimmed) {
			// Nothing left to drop; the bare question overflows the
			// budget and the caller gets it as-is.
			return prompt, nil
		}
	}
}

// dropOne removes the least valuable remaining item and reports whether
// anything was removed
func dropOne(pctx *model.PromptContext) bool {
	switch {
	case len(pctx.Exemplars) > 0:
		pctx.Exemplars = pctx.Exemplars[:len(pctx.Exemplars)-1]
	case len(pctx.Documentation) > 0:
		pctx.Documentation = pctx.Documentation[:len(pctx.Documentation)-1]
	case len(pctx.DDL) > 0:
		pctx.DDL = pctx.DDL[:len(pctx.DDL)-1]
	default:
		return false
	}
	return true
}

// ComposeSummary renders the secondary prompt that turns a row-set back
// into a natural-language answer
func (c *Composer) ComposeSummary(question string, result *model.QueryResult) (string, error) {
	rows := make([]string, 0, maxSummaryRows)
	for i, row := range result.Rows {
		if i >= maxSummaryRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		rows = append(rows, strings.Join(cells, " | "))
	}

	data := map[string]any{
		"Question": question,
		"Columns":  strings.Join(result.Columns, ", "),
		"RowCount": len(result.Rows),
		"Rows":     rows,
	}

	var buf bytes.Buffer
	if err := summarizeTmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render summary prompt")
	}
	return buf.String(), nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt template")
	}
	return buf.String(), nil
}
