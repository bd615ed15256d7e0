package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationMessage holds the schema definition for the per-job message log.
// Append-only.
type ConversationMessage struct {
	ent.Schema
}

// Fields of the ConversationMessage.
func (ConversationMessage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("message_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.Enum("role").
			Values("user", "system").
			Immutable(),
		field.Enum("message_type").
			Values("text", "status", "event").
			Immutable(),
		field.Text("content").
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the ConversationMessage.
func (ConversationMessage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("messages").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ConversationMessage.
func (ConversationMessage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "created_at"),
	}
}
