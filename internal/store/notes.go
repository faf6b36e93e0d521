package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jotter/internal/models"
)

const noteColumns = "id, title, content, tags, attachments, created_at, updated_at"

// CreateNote inserts a note with an empty attachment registry.
func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	if note == nil {
		return fmt.Errorf("note is required")
	}
	if strings.TrimSpace(note.ID) == "" {
		return fmt.Errorf("note id is required")
	}

	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.UpdatedAt.IsZero() {
		note.UpdatedAt = note.CreatedAt
	}
	note.Tags = normalizeTags(note.Tags)
	note.Attachments = []models.Attachment{}

	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, tags, attachments, created_at, updated_at) VALUES (?, ?, ?, ?, '[]', ?, ?)`,
		note.ID, note.Title, nullString(note.Content), string(tagsJSON), formatTime(note.CreatedAt), formatTime(note.UpdatedAt),
	)
	return err
}

// GetNote returns a note with its registry, or nil when it does not exist.
func (s *Store) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	return scanNote(row)
}

// NoteExists checks whether a note exists by id.
func (s *Store) NoteExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM notes WHERE id = ? LIMIT 1", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanNote(scanner interface {
	Scan(dest ...any) error
}) (*models.Note, error) {
	note := models.Note{}
	var content sql.NullString
	var tagsJSON, attachmentsJSON, createdAt, updatedAt string

	err := scanner.Scan(&note.ID, &note.Title, &content, &tagsJSON, &attachmentsJSON, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	note.Content = content.String

	if err := json.Unmarshal([]byte(tagsJSON), &note.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %w", note.ID, err)
	}
	attachments, err := decodeAttachments(attachmentsJSON)
	if err != nil {
		return nil, fmt.Errorf("decode attachments for %s: %w", note.ID, err)
	}
	note.Attachments = attachments

	if note.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if note.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &note, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
