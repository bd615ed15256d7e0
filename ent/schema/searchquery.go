package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SearchQuery holds the schema definition for a stable intent record per
// hypothesis endpoint pair. (job_id, hypothesis_signature) is unique;
// hypothesis_signature is a deterministic hash of (source, target) only.
type SearchQuery struct {
	ent.Schema
}

// Fields of the SearchQuery.
func (SearchQuery) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("search_query_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("hypothesis_signature").
			Immutable(),
		field.String("query_text"),
		field.String("resolved_domain").
			Optional().
			Nillable(),
		field.Enum("domain_resolution_method").
			Values("allow_list", "llm_fallback").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("new", "reusable", "exhausted", "blocked").
			Default("new"),
		field.Int("reputation_score").
			Default(0),
		field.JSON("config_snapshot", map[string]interface{}{}).
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the SearchQuery.
func (SearchQuery) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("search_queries").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
		edge.To("runs", SearchQueryRun.Type),
	}
}

// Indexes of the SearchQuery.
func (SearchQuery) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "hypothesis_signature").
			Unique(),
		index.Fields("job_id", "status"),
	}
}
