package model

import "time"

// ConversationMessage is one entry in the append-only per-job message log.
type ConversationMessage struct {
	ID          string    `json:"id"`
	JobID       int64     `json:"job_id"`
	Role        string    `json:"role"` // user | system
	MessageType string    `json:"message_type"` // text | status | event
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// File is a physical uploaded or downloaded artifact.
type File struct {
	ID               string    `json:"id"`
	JobID            int64     `json:"job_id"`
	PaperID          *string   `json:"paper_id,omitempty"`
	Origin           string    `json:"origin"` // user_upload | paper_download
	StoredPath       string    `json:"stored_path"`
	Type             string    `json:"type"`
	OriginalFilename string    `json:"original_filename"`
	Extracted        bool      `json:"extracted"`
	CreatedAt        time.Time `json:"created_at"`
}
