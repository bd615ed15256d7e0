package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DecisionResult holds the schema definition for a snapshot of one decision
// cycle. Append-only; rows are strictly monotone in created_at per job.
type DecisionResult struct {
	ent.Schema
}

// Fields of the DecisionResult.
func (DecisionResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("decision_result_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("decision_label").
			Immutable(),
		field.String("provider_used").
			Immutable().
			Comment(`"rule_based" or "llm"`),
		field.JSON("measurements_snapshot", map[string]interface{}{}).
			Immutable(),
		field.Bool("fallback_used").
			Immutable(),
		field.String("fallback_reason").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the DecisionResult.
func (DecisionResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("decision_results").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the DecisionResult.
func (DecisionResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "created_at"),
	}
}
