package corpus

import (
	"context"
	"encoding/json"
	"io"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/askdb/pkg/model"
)

// snapshot is the JSON export format. Embeddings are carried along so
// importing does not need the embedding provider and a snapshot can be
// replayed into a different store backend.
type snapshot struct {
	Artifacts []*model.Artifact `json:"artifacts"`
}

// Export writes the whole corpus as JSON and returns the artifact count
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	var snap snapshot
	for _, kind := range model.Kinds() {
		artifacts, err := s.repo.ListArtifacts(ctx, kind)
		if err != nil {
			return 0, err
		}
		snap.Artifacts = append(snap.Artifacts, artifacts...)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&snap); err != nil {
		return 0, goerr.Wrap(err, "failed to encode corpus snapshot")
	}

	return len(snap.Artifacts), nil
}

// Import replays a snapshot into the store and returns the artifact
// count. Artifacts keep their IDs and embeddings.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return 0, goerr.Wrap(err, "failed to decode corpus snapshot")
	}

	for i, artifact := range snap.Artifacts {
		if err := s.repo.PutArtifact(ctx, artifact); err != nil {
			return i, goerr.Wrap(err, "failed to import artifact", goerr.V("id", artifact.ID))
		}
	}

	return len(snap.Artifacts), nil
}
