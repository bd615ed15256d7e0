package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SemanticGraph holds the schema definition for a versioned graph snapshot.
// At most one row with is_active=true per job; versions increase
// monotonically; old versions retained for audit.
type SemanticGraph struct {
	ent.Schema
}

// Fields of the SemanticGraph.
func (SemanticGraph) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("semantic_graph_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.JSON("graph", map[string]interface{}{}).
			Immutable().
			Comment("{nodes: [...], edges: [...]}"),
		field.Int("node_count").
			Immutable(),
		field.Int("edge_count").
			Immutable(),
		field.Int("version").
			Immutable(),
		field.Bool("is_active").
			Default(true),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the SemanticGraph.
func (SemanticGraph) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("semantic_graphs").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the SemanticGraph.
func (SemanticGraph) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "version").
			Unique(),
		index.Fields("job_id", "is_active").
			Annotations(entsql.IndexWhere("is_active = true")).
			Unique(),
	}
}
