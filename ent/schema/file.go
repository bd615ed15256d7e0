package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// File holds the schema definition for a physical uploaded or downloaded
// artifact.
type File struct {
	ent.Schema
}

// Fields of the File.
func (File) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("file_id").
			Unique().
			Immutable(),
		field.Int("job_id").
			Immutable(),
		field.String("paper_id").
			Optional().
			Nillable(),
		field.Enum("origin").
			Values("user_upload", "paper_download").
			Immutable(),
		field.String("stored_path").
			Immutable(),
		field.String("type").
			Immutable().
			Comment("pdf, docx, xlsx, ..."),
		field.String("original_filename").
			Immutable(),
		field.Bool("extracted").
			Default(false).
			Comment("Flips true once regions have been extracted"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the File.
func (File) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", Job.Type).
			Ref("files").
			Field("job_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the File.
func (File) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("job_id", "extracted"),
	}
}
