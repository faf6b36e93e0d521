package store

import (
	"context"

	"jotter/internal/models"
)

// NoteStore is the minimal note surface that backs attachment registries.
type NoteStore interface {
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	NoteExists(ctx context.Context, id string) (bool, error)
}

// AttachmentRegistry defines the per-note attachment list operations.
type AttachmentRegistry interface {
	AppendAttachment(ctx context.Context, noteID string, attachment models.Attachment) ([]models.Attachment, error)
	RemoveAttachment(ctx context.Context, noteID, attachmentID string) ([]models.Attachment, error)
	ListAttachments(ctx context.Context, noteID string) ([]models.Attachment, error)
	GetAttachment(ctx context.Context, noteID, attachmentID string) (*models.Attachment, error)
	FindAttachmentByStorageKey(ctx context.Context, key string) (string, *models.Attachment, error)
	ListReferencedStorageKeys(ctx context.Context) (map[string]struct{}, error)
}

var (
	_ NoteStore          = (*Store)(nil)
	_ AttachmentRegistry = (*Store)(nil)
)
