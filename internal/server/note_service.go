package server

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"jotter/internal/api"
	"jotter/internal/models"
	"jotter/internal/store"
)

const maxNoteTitleLength = 200

// NoteService creates and reads the notes that own attachment registries.
type NoteService struct {
	store store.NoteStore
}

// NewNoteService constructs a NoteService.
func NewNoteService(noteStore store.NoteStore) *NoteService {
	return &NoteService{store: noteStore}
}

// Create bootstraps a note with an empty registry.
func (s *NoteService) Create(ctx context.Context, req api.NoteCreateRequest) (models.Note, error) {
	var zero models.Note
	if s == nil || s.store == nil {
		return zero, internalError(fmt.Errorf("note service is not configured"))
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return zero, badRequestCode(fmt.Errorf("title is required"), ErrCodeMissingRequired)
	}
	if utf8.RuneCountInString(title) > maxNoteTitleLength {
		return zero, badRequestCode(fmt.Errorf("title must be at most %d characters", maxNoteTitleLength), ErrCodeInvalidArgument)
	}

	id, err := store.GenerateNoteID(func(id string) (bool, error) {
		return s.store.NoteExists(ctx, id)
	})
	if err != nil {
		return zero, storeFailure(err)
	}

	note := &models.Note{ID: id, Title: title, Content: req.Content, Tags: req.Tags}
	if err := s.store.CreateNote(ctx, note); err != nil {
		return zero, storeFailure(err)
	}
	return s.Get(ctx, id)
}

// Get returns one note with its attachment registry.
func (s *NoteService) Get(ctx context.Context, id string) (models.Note, error) {
	var zero models.Note
	if s == nil || s.store == nil {
		return zero, internalError(fmt.Errorf("note service is not configured"))
	}
	if !validateNoteID(id) {
		return zero, badRequestCode(fmt.Errorf("invalid note id"), ErrCodeInvalidID)
	}
	note, err := s.store.GetNote(ctx, id)
	if err != nil {
		return zero, storeFailure(err)
	}
	if note == nil {
		return zero, notFoundCode(fmt.Errorf("note not found"), ErrCodeNoteNotFound)
	}
	return *note, nil
}
