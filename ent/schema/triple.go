package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Triple holds the schema definition for an extracted (subject, predicate,
// object) with provenance. Immutable.
type Triple struct {
	ent.Schema
}

// Fields of the Triple.
func (Triple) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("triple_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("block_id").
			Immutable(),
		field.String("ingestion_source_id").
			Immutable(),
		field.String("subject").
			Immutable(),
		field.String("predicate").
			Immutable(),
		field.String("object").
			Immutable(),
		field.String("extractor_name").
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Triple.
func (Triple) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("triples").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
		edge.From("block", TextBlock.Type).
			Ref("triples").
			Field("block_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Triple.
func (Triple) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id"),
		index.Fields("block_id"),
	}
}
