package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type ArtifactID string

// NewArtifactID generates a new unique ArtifactID
func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

// ArtifactKind is the variant of a training artifact
type ArtifactKind string

const (
	// KindDDL is a schema fact: raw DDL text describing one table
	KindDDL ArtifactKind = "ddl"
	// KindDocumentation is a free-text note about the data
	KindDocumentation ArtifactKind = "documentation"
	// KindExemplar is a question/SQL pair; the embedding covers the question
	KindExemplar ArtifactKind = "exemplar"
)

// Kinds lists all artifact kinds in a fixed order
func Kinds() []ArtifactKind {
	return []ArtifactKind{KindDDL, KindDocumentation, KindExemplar}
}

// Validate checks if the kind is recognized
func (k ArtifactKind) Validate() error {
	switch k {
	case KindDDL, KindDocumentation, KindExemplar:
		return nil
	default:
		return ErrInvalidKind
	}
}

// Artifact is one immutable training corpus entry. Text holds the DDL,
// the documentation note, or the exemplar question; SQL is set only for
// KindExemplar. The embedding is always computed over Text.
type Artifact struct {
	ID        ArtifactID
	Kind      ArtifactKind
	Text      string
	SQL       string
	Embedding firestore.Vector32
	CreatedAt time.Time

	// Seq is the insertion order assigned by the store, used to break
	// similarity ties deterministically (earlier wins).
	Seq int64 `firestore:"-"`
}

// Match is an artifact with its similarity score against a query
type Match struct {
	Artifact *Artifact
	Score    float64
}
