package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Job holds the schema definition for the Job entity (the root aggregate).
// Drives the stage state machine described in the component design.
type Job struct {
	ent.Schema
}

// Fields of the Job.
func (Job) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id").
			StorageKey("job_id").
			Unique().
			Immutable().
			Comment("Dense integer id, bigserial"),
		field.String("user_id").
			Immutable(),
		field.Enum("mode").
			Values("discovery", "verification").
			Immutable(),
		field.Enum("status").
			Values(
				"CREATED", "READY_TO_INGEST", "INGESTED", "TRIPLES_EXTRACTED",
				"STRUCTURAL_GRAPH_BUILT", "GRAPH_SANITIZED", "GRAPH_SEMANTIC_MERGED",
				"PATH_REASONING_DONE", "DECISION_MADE",
				"FETCH_QUEUED", "DOWNLOAD_QUEUED",
				"NEED_MORE_INPUT", "WAITING_FOR_USER", "NEEDS_EXPERT_REVIEW", "MANUAL_REVIEW",
				"COMPLETED", "FAILED",
			).
			Default("CREATED"),
		field.JSON("config", map[string]interface{}{}).
			Immutable().
			Comment("Per-job tuning snapshot, immutable copy taken at creation"),
		field.JSON("terminal_result", map[string]interface{}{}).
			Optional().
			Comment("Set by a terminal decision handler"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Time("last_heartbeat_at").
			Optional().
			Nillable().
			Comment("Worker liveness marker while the job is claimed"),
	}
}

// Edges of the Job.
func (Job) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("messages", ConversationMessage.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("files", File.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("ingestion_sources", IngestionSource.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("text_blocks", TextBlock.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("triples", Triple.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("semantic_graphs", SemanticGraph.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("hypotheses", Hypothesis.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("evidence", JobPaperEvidence.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("search_queries", SearchQuery.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("decision_results", DecisionResult.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("verification_results", VerificationResult.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Job.
func (Job) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "updated_at"),
		index.Fields("user_id", "created_at"),
	}
}
