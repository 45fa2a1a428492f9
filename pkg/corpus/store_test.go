package corpus_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/askdb/pkg/corpus"
	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/repository"
)

// wordEmbedder is a deterministic fake: the vector counts occurrences
// of a fixed vocabulary, so texts sharing words score as similar.
type wordEmbedder struct {
	vocabulary []string
	calls      int
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{
		vocabulary: []string{"battery", "batteries", "capacity", "kwh", "carbon", "parts", "price"},
	}
}

func (e *wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	lower := strings.ToLower(text)
	vector := make([]float32, len(e.vocabulary)+1)
	for i, word := range e.vocabulary {
		vector[i] = float32(strings.Count(lower, word))
	}
	// Bias element keeps zero-overlap texts from producing a zero vector
	vector[len(e.vocabulary)] = 0.1
	return vector, nil
}

func newStore(t *testing.T) (*corpus.Store, *wordEmbedder) {
	t.Helper()
	embedder := newWordEmbedder()
	return corpus.New(embedder, repository.NewMemory()), embedder
}

func TestStoreAddAndSimilar(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, model.KindDDL, "CREATE TABLE batteries (id INTEGER, capacity_kwh FLOAT)")
	gt.NoError(t, err)
	gt.NotEqual(t, id, model.ArtifactID(""))

	_, err = store.Add(ctx, model.KindDDL, "CREATE TABLE parts (id INTEGER, price FLOAT)")
	gt.NoError(t, err)

	matches, err := store.Similar(ctx, model.KindDDL, "battery capacity in kWh", 1)
	gt.NoError(t, err)
	gt.A(t, matches).Length(1)
	gt.S(t, matches[0].Artifact.Text).Contains("batteries")
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, model.ArtifactKind("bogus"), "text")
	gt.Error(t, err).Required()

	_, err = store.Add(ctx, model.KindDDL, "")
	gt.Error(t, err).Required()

	_, err = store.AddExemplar(ctx, "a question", "")
	gt.Error(t, err).Required()

	_, err = store.Similar(ctx, model.KindDDL, "q", -1)
	gt.Error(t, err).Required()
}

func TestStoreRetrieveColdStart(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	pctx, err := store.Retrieve(ctx, "Which batteries exceed 100 kWh capacity?", corpus.DefaultRetrieveLimits())
	gt.NoError(t, err)
	gt.A(t, pctx.DDL).Length(0)
	gt.A(t, pctx.Documentation).Length(0)
	gt.A(t, pctx.Exemplars).Length(0)
}

func TestStoreRetrieveIsIdempotent(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, model.KindDDL, "CREATE TABLE batteries (id INTEGER, capacity_kwh FLOAT, carbon_footprint_kg FLOAT)")
	gt.NoError(t, err)
	_, err = store.Add(ctx, model.KindDocumentation, "battery capacity is measured in kWh")
	gt.NoError(t, err)
	_, err = store.AddExemplar(ctx, "batteries over 100 kWh", "SELECT * FROM batteries WHERE capacity_kwh > 100")
	gt.NoError(t, err)

	question := "Which batteries exceed 100 kWh capacity?"
	first, err := store.Retrieve(ctx, question, corpus.DefaultRetrieveLimits())
	gt.NoError(t, err)
	second, err := store.Retrieve(ctx, question, corpus.DefaultRetrieveLimits())
	gt.NoError(t, err)

	gt.Equal(t, len(first.DDL), len(second.DDL))
	gt.Equal(t, len(first.Exemplars), len(second.Exemplars))
	for i := range first.Exemplars {
		gt.Equal(t, first.Exemplars[i].Artifact.ID, second.Exemplars[i].Artifact.ID)
		gt.Equal(t, first.Exemplars[i].Score, second.Exemplars[i].Score)
	}
}

func TestStoreRetrieveFindsExemplar(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.AddExemplar(ctx, "batteries over 100 kWh", "SELECT * FROM batteries WHERE capacity_kwh > 100")
	gt.NoError(t, err)
	_, err = store.AddExemplar(ctx, "average parts price", "SELECT AVG(price) FROM parts")
	gt.NoError(t, err)

	pctx, err := store.Retrieve(ctx, "Which batteries exceed 100 kWh capacity?", corpus.DefaultRetrieveLimits())
	gt.NoError(t, err)
	gt.A(t, pctx.Exemplars).Longer(0)
	gt.S(t, pctx.Exemplars[0].Artifact.Text).Contains("batteries over 100 kWh")
	gt.Equal(t, pctx.Exemplars[0].Artifact.SQL, "SELECT * FROM batteries WHERE capacity_kwh > 100")
}

func TestStoreRetrieveEmbedsQuestionOnce(t *testing.T) {
	store, embedder := newStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, model.KindDDL, "CREATE TABLE batteries (id INTEGER)")
	gt.NoError(t, err)

	before := embedder.calls
	_, err = store.Retrieve(ctx, "battery question", corpus.DefaultRetrieveLimits())
	gt.NoError(t, err)
	gt.Equal(t, embedder.calls-before, 1)
}

func TestStoreSnapshotRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, model.KindDDL, "CREATE TABLE batteries (id INTEGER)")
	gt.NoError(t, err)
	_, err = store.AddExemplar(ctx, "count batteries", "SELECT COUNT(*) FROM batteries")
	gt.NoError(t, err)

	var buf bytes.Buffer
	exported, err := store.Export(ctx, &buf)
	gt.NoError(t, err)
	gt.Equal(t, exported, 2)

	restored := corpus.New(newWordEmbedder(), repository.NewMemory())
	imported, err := restored.Import(ctx, &buf)
	gt.NoError(t, err)
	gt.Equal(t, imported, 2)

	exemplars, err := restored.All(ctx, model.KindExemplar)
	gt.NoError(t, err)
	gt.A(t, exemplars).Length(1)
	gt.Equal(t, exemplars[0].SQL, "SELECT COUNT(*) FROM batteries")
}
