package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Paper holds the schema definition for a canonical scholarly work. Papers
// are global and shared across jobs via JobPaperEvidence (weak reference).
// No two rows share the same fingerprint; no two share a non-null doi.
type Paper struct {
	ent.Schema
}

// Fields of the Paper.
func (Paper) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("paper_id").
			Unique().
			Immutable(),
		field.String("title").
			Immutable(),
		field.Text("abstract").
			Optional(),
		field.JSON("authors", []string{}).
			Immutable(),
		field.Int("year").
			Optional().
			Nillable(),
		field.String("venue").
			Optional(),
		field.String("doi").
			Optional().
			Nillable(),
		field.JSON("external_ids", map[string]string{}).
			Optional().
			Comment("provider name -> external id, e.g. {arxiv: ..., semantic_scholar: ...}"),
		field.String("fingerprint").
			Immutable().
			Comment("content-based dedup hash: normalized title+first-author+year"),
		field.String("pdf_url").
			Optional().
			Nillable(),
		field.String("source").
			Immutable().
			Comment("provider name that supplied this paper"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the Paper.
func (Paper) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("fingerprint").
			Unique(),
		index.Fields("doi").
			Unique(),
	}
}
