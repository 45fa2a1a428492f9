package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/m-mizutani/askdb/pkg/model"
)

const distanceField = "vector_distance"

// Firestore is the persistent corpus store. Each artifact kind lives in
// its own collection and similarity lookup uses Firestore vector search
// over the Embedding field (a vector index per collection is required).
type Firestore struct {
	client *firestore.Client
}

// New creates a Firestore-backed corpus store
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) collection(kind model.ArtifactKind) *firestore.CollectionRef {
	return r.client.Collection("corpus_" + string(kind))
}

func (r *Firestore) PutArtifact(ctx context.Context, artifact *model.Artifact) error {
	if err := artifact.Kind.Validate(); err != nil {
		return goerr.Wrap(err, "cannot store artifact", goerr.V("kind", artifact.Kind))
	}
	if artifact.Text == "" {
		return goerr.New("artifact text is empty")
	}
	if len(artifact.Embedding) == 0 {
		return goerr.New("artifact embedding is empty")
	}

	if artifact.ID == "" {
		artifact.ID = model.NewArtifactID()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	doc := r.collection(artifact.Kind).Doc(string(artifact.ID))
	if _, err := doc.Set(ctx, artifact); err != nil {
		return goerr.Wrap(err, "failed to save artifact", goerr.V("id", artifact.ID))
	}
	return nil
}

func (r *Firestore) ListArtifacts(ctx context.Context, kind model.ArtifactKind) ([]*model.Artifact, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	it := r.collection(kind).OrderBy("CreatedAt", firestore.Asc).Documents(ctx)
	defer it.Stop()

	var artifacts []*model.Artifact
	var seq int64
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			// A missing collection is a cold corpus, not a failure
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to list artifacts", goerr.V("kind", kind))
		}

		var artifact model.Artifact
		if err := doc.DataTo(&artifact); err != nil {
			return nil, goerr.Wrap(err, "failed to decode artifact", goerr.V("doc", doc.Ref.ID))
		}
		seq++
		artifact.Seq = seq
		artifacts = append(artifacts, &artifact)
	}

	return artifacts, nil
}

func (r *Firestore) SearchSimilar(ctx context.Context, kind model.ArtifactKind, embedding []float32, limit int) ([]*model.Match, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	query := r.collection(kind).FindNearest("Embedding",
		firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	it := query.Documents(ctx)
	defer it.Stop()

	var matches []*model.Match
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, nil
			}
			return nil, goerr.Wrap(err, "failed to search similar artifacts", goerr.V("kind", kind))
		}

		var artifact model.Artifact
		if err := doc.DataTo(&artifact); err != nil {
			return nil, goerr.Wrap(err, "failed to decode artifact", goerr.V("doc", doc.Ref.ID))
		}

		score := 0.0
		if distance, err := doc.DataAt(distanceField); err == nil {
			if d, ok := distance.(float64); ok {
				// Cosine distance is 1 - similarity
				score = 1 - d
			}
		}

		matches = append(matches, &model.Match{Artifact: &artifact, Score: score})
	}

	return matches, nil
}

func (r *Firestore) Clear(ctx context.Context, kinds ...model.ArtifactKind) (int, error) {
	if len(kinds) == 0 {
		kinds = model.Kinds()
	}
	for _, kind := range kinds {
		if err := kind.Validate(); err != nil {
			return 0, err
		}
	}

	writer := r.client.BulkWriter(ctx)
	var removed int
	for _, kind := range kinds {
		it := r.collection(kind).Documents(ctx)
		for {
			doc, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				it.Stop()
				return removed, goerr.Wrap(err, "failed to iterate artifacts", goerr.V("kind", kind))
			}
			if _, err := writer.Delete(doc.Ref); err != nil {
				it.Stop()
				return removed, goerr.Wrap(err, "failed to schedule delete", goerr.V("doc", doc.Ref.ID))
			}
			removed++
		}
		it.Stop()
	}
	writer.End()

	return removed, nil
}
