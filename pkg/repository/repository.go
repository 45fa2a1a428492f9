package repository

import (
	"context"
	"math"

	"github.com/m-mizutani/askdb/pkg/model"
)

// Repository is the persistence boundary of the training corpus.
// Artifacts are append-only and owned by the store; implementations
// must publish fully constructed artifacts so concurrent readers never
// observe a partial write. A naive linear-scan implementation is fine
// up to low tens of thousands of artifacts; anything smarter (ANN
// index, vector database) substitutes behind this same interface.
type Repository interface {
	// PutArtifact appends an artifact. Duplicate text within a kind is
	// permitted; callers own idempotent retraining.
	PutArtifact(ctx context.Context, artifact *model.Artifact) error

	// ListArtifacts returns all artifacts of a kind in insertion order
	ListArtifacts(ctx context.Context, kind model.ArtifactKind) ([]*model.Artifact, error)

	// SearchSimilar returns up to limit artifacts of the kind ordered by
	// similarity to the embedding, descending, ties broken by insertion
	// order (earlier wins)
	SearchSimilar(ctx context.Context, kind model.ArtifactKind, embedding []float32, limit int) ([]*model.Match, error)

	// Clear removes all artifacts of the given kinds (all kinds when
	// none given) and returns how many were removed
	Clear(ctx context.Context, kinds ...model.ArtifactKind) (int, error)
}

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
