package corpus

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/askdb/pkg/adapter"
	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/askdb/pkg/repository"
	"github.com/m-mizutani/askdb/pkg/utils/logging"
)

// Store is the training corpus service. It owns embedding computation:
// callers hand in text, the store embeds it and persists the artifact
// through the repository.
type Store struct {
	embedder adapter.Embedder
	repo     repository.Repository
}

// New creates a corpus store on top of an embedder and a repository
func New(embedder adapter.Embedder, repo repository.Repository) *Store {
	return &Store{
		embedder: embedder,
		repo:     repo,
	}
}

// Add embeds text and stores it as an artifact of the given kind.
// Duplicate text is permitted; retraining callers should Clear first.
func (s *Store) Add(ctx context.Context, kind model.ArtifactKind, text string) (model.ArtifactID, error) {
	return s.add(ctx, kind, text, "")
}

// AddExemplar stores a question/SQL pair; the embedding covers the
// question text only
func (s *Store) AddExemplar(ctx context.Context, question, sql string) (model.ArtifactID, error) {
	if sql == "" {
		return "", goerr.New("exemplar sql is empty")
	}
	return s.add(ctx, model.KindExemplar, question, sql)
}

func (s *Store) add(ctx context.Context, kind model.ArtifactKind, text, sql string) (model.ArtifactID, error) {
	if err := kind.Validate(); err != nil {
		return "", goerr.Wrap(err, "cannot add artifact", goerr.V("kind", kind))
	}
	if text == "" {
		return "", goerr.New("artifact text is empty")
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed artifact text")
	}

	artifact := &model.Artifact{
		ID:        model.NewArtifactID(),
		Kind:      kind,
		Text:      text,
		SQL:       sql,
		Embedding: embedding,
	}
	if err := s.repo.PutArtifact(ctx, artifact); err != nil {
		return "", err
	}

	logging.From(ctx).Debug("added training artifact",
		"id", artifact.ID, "kind", kind, "chars", len(text))
	return artifact.ID, nil
}

// Similar embeds the query text once and returns the top k artifacts of
// the kind, highest similarity first. k = 0 returns nothing.
func (s *Store) Similar(ctx context.Context, kind model.ArtifactKind, queryText string, k int) ([]*model.Match, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, goerr.New("negative limit", goerr.V("k", k))
	}
	if k == 0 {
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query text")
	}

	return s.repo.SearchSimilar(ctx, kind, embedding, k)
}

// All returns every stored artifact of a kind in insertion order
func (s *Store) All(ctx context.Context, kind model.ArtifactKind) ([]*model.Artifact, error) {
	return s.repo.ListArtifacts(ctx, kind)
}

// Clear removes artifacts of the given kinds (all when none given) and
// returns the removed count
func (s *Store) Clear(ctx context.Context, kinds ...model.ArtifactKind) (int, error) {
	return s.repo.Clear(ctx, kinds...)
}

// RetrieveLimits are the per-kind top-K limits of one retrieval
type RetrieveLimits struct {
	DDL           int
	Documentation int
	Exemplars     int
}

// DefaultRetrieveLimits returns the default top-K values
func DefaultRetrieveLimits() RetrieveLimits {
	return RetrieveLimits{
		DDL:           3,
		Documentation: 3,
		Exemplars:     5,
	}
}

// Retrieve embeds the question once and looks up the top artifacts of
// each kind. The three lookups run concurrently; they share no mutable
// state. An empty corpus is a valid cold-start state, not an error.
func (s *Store) Retrieve(ctx context.Context, question string, limits RetrieveLimits) (*model.PromptContext, error) {
	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed question")
	}

	pctx := &model.PromptContext{Question: question}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		matches, err := s.repo.SearchSimilar(egCtx, model.KindDDL, embedding, limits.DDL)
		if err != nil {
			return err
		}
		pctx.DDL = matches
		return nil
	})
	eg.Go(func() error {
		matches, err := s.repo.SearchSimilar(egCtx, model.KindDocumentation, embedding, limits.Documentation)
		if err != nil {
			return err
		}
		pctx.Documentation = matches
		return nil
	})
	eg.Go(func() error {
		matches, err := s.repo.SearchSimilar(egCtx, model.KindExemplar, embedding, limits.Exemplars)
		if err != nil {
			return err
		}
		pctx.Exemplars = matches
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve context")
	}

	return pctx, nil
}
