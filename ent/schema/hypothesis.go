package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Hypothesis holds the schema definition for an enumerated indirect path.
// On each generation run, the previous active set for the job is deleted
// and replaced; only one active set exists.
type Hypothesis struct {
	ent.Schema
}

// Fields of the Hypothesis.
func (Hypothesis) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("hypothesis_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("source").
			Immutable(),
		field.String("target").
			Immutable(),
		field.JSON("path", []string{}).
			Immutable().
			Comment("Ordered node list, source..target"),
		field.JSON("predicates", []string{}).
			Immutable().
			Comment("Flattened per-hop predicate lists in order"),
		field.Text("explanation").
			Immutable(),
		field.Int("confidence").
			Immutable(),
		field.Enum("mode").
			Values("explore", "query").
			Immutable(),
		field.Bool("passed_filter"),
		field.JSON("filter_reason", map[string]string{}).
			Optional().
			Comment("rule name -> human-readable cause, present only when rejected"),
		field.JSON("triple_ids", []string{}).
			Immutable(),
		field.JSON("source_ids", []string{}).
			Immutable(),
		field.JSON("block_ids", []string{}).
			Immutable(),
		field.String("domain").
			Optional().
			Nillable(),
		field.Bool("is_active").
			Default(true),
		field.Int("version").
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Hypothesis.
func (Hypothesis) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("hypotheses").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Hypothesis.
func (Hypothesis) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "version"),
		index.Fields("job_id", "is_active").
			Annotations(entsql.IndexWhere("is_active = true")),
		index.Fields("job_id", "source", "target"),
	}
}
