package sqlcheck_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/sqlcheck"
)

const denyTablePolicy = `package sqlguard

import rego.v1

deny contains msg if {
	some table in input.tables
	table == "salaries"
	msg := sprintf("table %s is not allowed", [table])
}
`

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "guard.rego"), []byte(body), 0600))
	return dir
}

func TestPolicyDeny(t *testing.T) {
	ctx := context.Background()
	policy, err := sqlcheck.LoadPolicy(ctx, writePolicy(t, denyTablePolicy))
	gt.NoError(t, err)
	gt.V(t, policy).NotNil()

	gen := &model.GeneratedSQL{SQL: "SELECT * FROM salaries", Valid: true}
	reasons, err := policy.Evaluate(ctx, gen, "show me all salaries")
	gt.NoError(t, err)

	gt.A(t, reasons).Length(1)
	gt.S(t, reasons[0]).Contains("salaries")
}

func TestPolicyAllow(t *testing.T) {
	ctx := context.Background()
	policy, err := sqlcheck.LoadPolicy(ctx, writePolicy(t, denyTablePolicy))
	gt.NoError(t, err)

	gen := &model.GeneratedSQL{SQL: "SELECT * FROM batteries", Valid: true}
	reasons, err := policy.Evaluate(ctx, gen, "list batteries")
	gt.NoError(t, err)

	gt.A(t, reasons).Length(0)
}

func TestPolicyEmptyDir(t *testing.T) {
	policy, err := sqlcheck.LoadPolicy(context.Background(), t.TempDir())
	gt.NoError(t, err)
	gt.True(t, policy == nil)
}

func TestNilPolicyAllowsEverything(t *testing.T) {
	var policy *sqlcheck.Policy
	gen := &model.GeneratedSQL{SQL: "SELECT 1", Valid: true}
	reasons, err := policy.Evaluate(context.Background(), gen, "anything")
	gt.NoError(t, err)
	gt.A(t, reasons).Length(0)
}
