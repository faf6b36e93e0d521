package models

import "time"

// Note is the document that carries an attachment registry.
//
// Only Attachments is owned by the attachment subsystem; the remaining fields
// belong to the note editor and are stored as given.
type Note struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Content     string       `json:"content,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
