package repository_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo
}

func randomEmbedding(dims int) []float32 {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = rand.Float32()
	}
	return vec
}

func TestFirestorePutAndList(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	artifact := &model.Artifact{
		Kind:      model.KindDocumentation,
		Text:      fmt.Sprintf("integration test note %d", rand.Int63()),
		Embedding: randomEmbedding(16),
	}
	gt.NoError(t, repo.PutArtifact(ctx, artifact))
	gt.NotEqual(t, artifact.ID, model.ArtifactID(""))

	artifacts, err := repo.ListArtifacts(ctx, model.KindDocumentation)
	gt.NoError(t, err)

	found := false
	for _, a := range artifacts {
		if a.ID == artifact.ID {
			found = true
			gt.Equal(t, a.Text, artifact.Text)
		}
	}
	gt.True(t, found)
}

func TestFirestoreSearchSimilar(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	// Vector search requires a composite vector index on the Embedding
	// field; the embedding size here must match that index.
	target := &model.Artifact{
		Kind:      model.KindExemplar,
		Text:      fmt.Sprintf("how many rows in batteries %d", rand.Int63()),
		SQL:       "SELECT COUNT(*) FROM batteries",
		Embedding: randomEmbedding(768),
	}
	gt.NoError(t, repo.PutArtifact(ctx, target))

	matches, err := repo.SearchSimilar(ctx, model.KindExemplar, target.Embedding, 3)
	gt.NoError(t, err)
	gt.A(t, matches).Longer(0)

	// Searching with the stored vector itself must rank it first
	gt.Equal(t, matches[0].Artifact.ID, target.ID)
	gt.Number(t, matches[0].Score).Greater(0.99)
}

func TestFirestoreClear(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	artifact := &model.Artifact{
		Kind:      model.KindDDL,
		Text:      "CREATE TABLE scratch (id INTEGER)",
		Embedding: randomEmbedding(16),
	}
	gt.NoError(t, repo.PutArtifact(ctx, artifact))

	n, err := repo.Clear(ctx, model.KindDDL)
	gt.NoError(t, err)
	gt.Number(t, n).Greater(0)

	artifacts, err := repo.ListArtifacts(ctx, model.KindDDL)
	gt.NoError(t, err)
	gt.A(t, artifacts).Length(0)
}
