package model

// PromptContext holds everything retrieved for a single question. It is
// assembled once per request and discarded after the completion call.
type PromptContext struct {
	Question      string
	SchemaSummary string

	DDL           []*Match
	Documentation []*Match
	Exemplars     []*Match
}
