package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// JobPaperEvidence holds the schema definition for the ledger linking a
// paper to a job (the "strategic ledger"). Append-only with respect to
// (job_id, paper_id) uniqueness; evaluated flips once to true after
// extraction.
type JobPaperEvidence struct {
	ent.Schema
}

// Fields of the JobPaperEvidence.
func (JobPaperEvidence) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("evidence_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("paper_id").
			Immutable(),
		field.String("run_id").
			Immutable().
			Comment("SearchQueryRun that surfaced this paper"),
		field.Bool("evaluated").
			Default(false),
		field.Float("impact_score").
			Default(0),
		field.Float("hypo_ref_count").
			Default(0),
		field.Float("cumulative_conf").
			Default(0),
		field.Float("entity_density").
			Default(0),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the JobPaperEvidence.
func (JobPaperEvidence) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("evidence").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the JobPaperEvidence.
func (JobPaperEvidence) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "paper_id").
			Unique(),
		index.Fields("job_id", "evaluated"),
		index.Fields("job_id", "impact_score"),
	}
}
