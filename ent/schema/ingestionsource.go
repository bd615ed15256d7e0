package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// IngestionSource holds the schema definition for a unit of text to ingest.
// raw_text is the canonical post-extraction/refinement text; no downstream
// stage may bypass it.
type IngestionSource struct {
	ent.Schema
}

// Fields of the IngestionSource.
func (IngestionSource) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("ingestion_source_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.Enum("source_type").
			Values("user_text", "pdf_text", "paper_abstract", "api_text").
			Immutable(),
		field.String("source_ref").
			Immutable().
			Comment(`e.g. "paper:{id}" or a file id`),
		field.Text("raw_text").
			Optional(),
		field.Bool("processed").
			Default(false).
			Comment("Monotone true-once"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the IngestionSource.
func (IngestionSource) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("ingestion_sources").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
		edge.To("text_blocks", TextBlock.Type),
	}
}

// Indexes of the IngestionSource.
func (IngestionSource) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "processed"),
		index.Fields("job_id", "source_type"),
	}
}
