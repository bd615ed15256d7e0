package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SearchQueryRun holds the schema definition for an append-only execution
// log entry. signal_delta is set exactly once, after the next DecisionResult
// occurs.
type SearchQueryRun struct {
	ent.Schema
}

// Fields of the SearchQueryRun.
func (SearchQueryRun) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("search_query_run_id").
			Unique().
			Immutable(),
		field.String("search_query_id").
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("provider_used").
			Immutable(),
		field.String("reason").
			Immutable().
			Comment(`e.g. "initial_attempt", "reuse"`),
		field.JSON("fetched_paper_ids", []string{}).
			Immutable(),
		field.JSON("accepted_paper_ids", []string{}).
			Immutable(),
		field.JSON("rejected_paper_ids", []string{}).
			Immutable(),
		field.Int("signal_delta").
			Optional().
			Nillable().
			Comment("-1, 0, or +1; set exactly once"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the SearchQueryRun.
func (SearchQueryRun) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("search_query", SearchQuery.Type).
			Ref("runs").
			Field("search_query_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the SearchQueryRun.
func (SearchQueryRun) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("search_query_id", "created_at"),
		index.Fields("job_id", "created_at"),
		index.Fields("job_id", "signal_delta"),
	}
}
