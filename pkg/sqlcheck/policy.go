package sqlcheck

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/m-mizutani/askdb/pkg/model"
)

// Policy is an optional Rego gate evaluated after validation, as an
// operator-controlled guard on top of the built-in read-only checks
// (e.g. deny access to specific tables). The policy package is
// `sqlguard`; any string in its `deny` set rejects the query.
type Policy struct {
	query *rego.PreparedEvalQuery
}

// LoadPolicy loads all .rego files from dir and prepares the sqlguard
// query. It returns nil when the directory holds no policy files.
func LoadPolicy(ctx context.Context, dir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.sqlguard"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare sqlguard query")
	}

	return &Policy{query: &prepared}, nil
}

// Evaluate applies the policy to a validated statement. Denial reasons
// come back as strings for user display. A nil Policy allows everything.
func (p *Policy) Evaluate(ctx context.Context, gen *model.GeneratedSQL, question string) ([]string, error) {
	if p == nil || p.query == nil {
		return nil, nil
	}

	input := map[string]any{
		"sql":      gen.SQL,
		"question": question,
		"tables":   Tables(gen.SQL),
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate sqlguard policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, nil
	}

	denies, ok := data["deny"].([]any)
	if !ok {
		return nil, nil
	}

	var reasons []string
	for _, d := range denies {
		if s, ok := d.(string); ok {
			reasons = append(reasons, s)
		}
	}

	return reasons, nil
}
