package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/askdb/pkg/model"
)

// Memory is the in-process corpus store. Artifacts are grouped by kind
// and scored by linear cosine scan. Safe for concurrent readers during
// writes: each artifact is fully constructed before it is appended, and
// readers take a slice snapshot under the read lock.
type Memory struct {
	mu        sync.RWMutex
	artifacts map[model.ArtifactKind][]*model.Artifact
	seq       int64
	dims      int
}

// NewMemory creates an empty in-memory corpus store
func NewMemory() *Memory {
	return &Memory{
		artifacts: make(map[model.ArtifactKind][]*model.Artifact),
	}
}

func (m *Memory) PutArtifact(ctx context.Context, artifact *model.Artifact) error {
	if err := artifact.Kind.Validate(); err != nil {
		return goerr.Wrap(err, "cannot store artifact", goerr.V("kind", artifact.Kind))
	}
	if artifact.Text == "" {
		return goerr.New("artifact text is empty")
	}
	if len(artifact.Embedding) == 0 {
		return goerr.New("artifact embedding is empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dims == 0 {
		m.dims = len(artifact.Embedding)
	} else if len(artifact.Embedding) != m.dims {
		return goerr.New("embedding dimensionality mismatch",
			goerr.V("want", m.dims), goerr.V("got", len(artifact.Embedding)))
	}

	m.seq++
	stored := *artifact
	stored.Seq = m.seq
	if stored.ID == "" {
		stored.ID = model.NewArtifactID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	m.artifacts[artifact.Kind] = append(m.artifacts[artifact.Kind], &stored)
	if artifact.ID == "" {
		artifact.ID = stored.ID
	}
	return nil
}

func (m *Memory) ListArtifacts(ctx context.Context, kind model.ArtifactKind) ([]*model.Artifact, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	stored := m.artifacts[kind]
	m.mu.RUnlock()

	result := make([]*model.Artifact, len(stored))
	copy(result, stored)
	return result, nil
}

func (m *Memory) SearchSimilar(ctx context.Context, kind model.ArtifactKind, embedding []float32, limit int) ([]*model.Match, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	stored := m.artifacts[kind]
	m.mu.RUnlock()

	matches := make([]*model.Match, 0, len(stored))
	for _, artifact := range stored {
		matches = append(matches, &model.Match{
			Artifact: artifact,
			Score:    cosineSimilarity(embedding, artifact.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Artifact.Seq < matches[j].Artifact.Seq
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *Memory) Clear(ctx context.Context, kinds ...model.ArtifactKind) (int, error) {
	if len(kinds) == 0 {
		kinds = model.Kinds()
	}
	for _, kind := range kinds {
		if err := kind.Validate(); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int
	for _, kind := range kinds {
		removed += len(m.artifacts[kind])
		delete(m.artifacts, kind)
	}
	return removed, nil
}
