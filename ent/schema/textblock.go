package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TextBlock holds the schema definition for a slice of one IngestionSource.
// triples_extracted is monotone true-once; block order is stable.
type TextBlock struct {
	ent.Schema
}

// Fields of the TextBlock.
func (TextBlock) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("text_block_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("ingestion_source_id").
			Immutable(),
		field.Text("block_text").
			Immutable(),
		field.Int("block_order").
			Immutable(),
		field.String("segmentation_strategy").
			Immutable(),
		field.Bool("triples_extracted").
			Default(false),
	}
}

// Edges of the TextBlock.
func (TextBlock) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("text_blocks").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
		edge.From("ingestion_source", IngestionSource.Type).
			Ref("text_blocks").
			Field("ingestion_source_id").
			Unique().
			Required().
			Immutable(),
		edge.To("triples", Triple.Type),
	}
}

// Indexes of the TextBlock.
func (TextBlock) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("ingestion_source_id", "block_order").
			Unique(),
		index.Fields("job_id", "triples_extracted"),
	}
}
