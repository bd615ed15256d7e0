package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// VerificationResult holds the schema definition for the outcome of a
// verification-mode job.
type VerificationResult struct {
	ent.Schema
}

// Fields of the VerificationResult.
func (VerificationResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("verification_result_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("source").
			Immutable(),
		field.String("target").
			Immutable(),
		field.Bool("connection_found").
			Optional().
			Nillable(),
		field.String("connection_type").
			Optional().
			Nillable().
			Comment(`e.g. "direct", "indirect"`),
		field.JSON("path", []string{}).
			Optional(),
		field.Text("explanation").
			Optional(),
		field.JSON("supporting_papers", []string{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the VerificationResult.
func (VerificationResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("verification_results").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the VerificationResult.
func (VerificationResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id"),
	}
}
