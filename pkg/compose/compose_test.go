package compose_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/askdb/pkg/compose"
	"github.com/m-mizutani/askdb/pkg/model"
)

const batteryDDL = "CREATE TABLE batteries(id INTEGER, capacity_kwh FLOAT, carbon_footprint_kg FLOAT)"

func match(kind model.ArtifactKind, text, sql string) *model.Match {
	return &model.Match{
		Artifact: &model.Artifact{Kind: kind, Text: text, SQL: sql},
		Score:    0.9,
	}
}

func batteryContext() *model.PromptContext {
	return &model.PromptContext{
		Question:      "Which batteries exceed 100 kWh capacity?",
		SchemaSummary: "Table: batteries\n- capacity_kwh (FLOAT)",
		DDL:           []*model.Match{match(model.KindDDL, batteryDDL, "")},
		Documentation: []*model.Match{match(model.KindDocumentation, "capacity_kwh is the battery capacity in kilowatt-hours", "")},
		Exemplars:     []*model.Match{match(model.KindExemplar, "batteries over 100 kWh", "SELECT * FROM batteries WHERE capacity_kwh > 100")},
	}
}

func TestComposeContainsRetrievedContext(t *testing.T) {
	composer, err := compose.New()
	gt.NoError(t, err)

	prompt, err := composer.Compose(batteryContext())
	gt.NoError(t, err)

	gt.S(t, prompt).Contains(batteryDDL)
	gt.S(t, prompt).Contains("Q: batteries over 100 kWh")
	gt.S(t, prompt).Contains("SQL: SELECT * FROM batteries WHERE capacity_kwh > 100")
	gt.S(t, prompt).Contains("Which batteries exceed 100 kWh capacity?")
	gt.S(t, prompt).Contains("single SQL statement")
}

func TestComposeSectionOrder(t *testing.T) {
	composer, err := compose.New()
	gt.NoError(t, err)

	prompt, err := composer.Compose(batteryContext())
	gt.NoError(t, err)

	schemaAt := strings.Index(prompt, "Table: batteries")
	ddlAt := strings.Index(prompt, batteryDDL)
	docAt := strings.Index(prompt, "kilowatt-hours")
	exemplarAt := strings.Index(prompt, "Q: batteries over 100 kWh")
	questionAt := strings.Index(prompt, "Which batteries exceed")

	gt.True(t, schemaAt >= 0)
	gt.True(t, schemaAt < ddlAt)
	gt.True(t, ddlAt < docAt)
	gt.True(t, docAt < exemplarAt)
	gt.True(t, exemplarAt < questionAt)
}

func TestComposeIsDeterministic(t *testing.T) {
	composer, err := compose.New()
	gt.NoError(t, err)

	first, err := composer.Compose(batteryContext())
	gt.NoError(t, err)
	second, err := composer.Compose(batteryContext())
	gt.NoError(t, err)

	gt.Equal(t, first, second)
}

func TestComposeBudgetDropsExemplarsFirst(t *testing.T) {
	composer, err := compose.New(compose.WithTokenBudget(220))
	gt.NoError(t, err)

	filler := strings.Repeat("carbon footprint lifecycle assessment detail ", 40)
	pctx := batteryContext()
	pctx.Documentation = append(pctx.Documentation, match(model.KindDocumentation, filler, ""))
	pctx.Exemplars = append(pctx.Exemplars, match(model.KindExemplar, filler, "SELECT 1"))

	prompt, err := composer.Compose(pctx)
	gt.NoError(t, err)

	gt.Number(t, composer.TokenCount(prompt)).LessOrEqual(220)
	// Schema facts survive truncation; the oversized exemplar does not
	gt.S(t, prompt).Contains(batteryDDL)
	gt.False(t, strings.Contains(prompt, "SELECT 1"))
}

func TestComposeDoesNotMutateContext(t *testing.T) {
	composer, err := compose.New(compose.WithTokenBudget(100))
	gt.NoError(t, err)

	pctx := batteryContext()
	_, err = composer.Compose(pctx)
	gt.NoError(t, err)

	gt.A(t, pctx.Exemplars).Length(1)
	gt.A(t, pctx.Documentation).Length(1)
	gt.A(t, pctx.DDL).Length(1)
}

func TestComposeSummary(t *testing.T) {
	composer, err := compose.New()
	gt.NoError(t, err)

	result := &model.QueryResult{
		Columns: []string{"type", "capacity_kwh"},
		Rows: [][]any{
			{"Lithium-Ion", 75.0},
			{"NMC", 85.0},
		},
	}

	prompt, err := composer.ComposeSummary("What battery types exist?", result)
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("What battery types exist?")
	gt.S(t, prompt).Contains("type, capacity_kwh")
	gt.S(t, prompt).Contains("Lithium-Ion")
}
