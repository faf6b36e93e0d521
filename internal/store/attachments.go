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

// Registry mutations are single UPDATE statements over the note's JSON array,
// so concurrent writers on one note push or pull elements by id and never
// replace the list wholesale.
const (
	appendAttachmentSQL = `
UPDATE notes
SET attachments = json_insert(attachments, '$[#]', json(?)), updated_at = ?
WHERE id = ?
  AND NOT EXISTS (
    SELECT 1 FROM json_each(notes.attachments) WHERE json_extract(value, '$.id') = ?
  )`

	removeAttachmentSQL = `
UPDATE notes
SET attachments = json_remove(attachments, (
      SELECT fullkey FROM json_each(notes.attachments)
      WHERE json_extract(value, '$.id') = ? LIMIT 1
    )),
    updated_at = ?
WHERE id = ?
  AND EXISTS (
    SELECT 1 FROM json_each(notes.attachments) WHERE json_extract(value, '$.id') = ?
  )`
)

// AppendAttachment atomically pushes a descriptor onto the end of a note's
// registry and returns the updated list.
func (s *Store) AppendAttachment(ctx context.Context, noteID string, attachment models.Attachment) (_ []models.Attachment, err error) {
	if strings.TrimSpace(attachment.ID) == "" {
		return nil, fmt.Errorf("attachment id is required")
	}
	payload, err := json.Marshal(attachment)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, appendAttachmentSQL, string(payload), formatTime(time.Now()), noteID, attachment.ID)
	if err != nil {
		return nil, err
	}
	if err := requireOneRow(ctx, tx, res, noteID, ErrDuplicateAttachment); err != nil {
		return nil, err
	}

	list, err := attachmentsTx(ctx, tx, noteID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

// RemoveAttachment atomically pulls the descriptor with attachmentID from a
// note's registry. Remaining entries keep their relative order.
func (s *Store) RemoveAttachment(ctx context.Context, noteID, attachmentID string) (_ []models.Attachment, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, removeAttachmentSQL, attachmentID, formatTime(time.Now()), noteID, attachmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOneRow(ctx, tx, res, noteID, ErrAttachmentNotFound); err != nil {
		return nil, err
	}

	list, err := attachmentsTx(ctx, tx, noteID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return list, nil
}

// ListAttachments returns a note's registry in insertion order.
func (s *Store) ListAttachments(ctx context.Context, noteID string) ([]models.Attachment, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT attachments FROM notes WHERE id = ?", noteID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeAttachments(raw)
}

// GetAttachment returns one descriptor from a note's registry.
func (s *Store) GetAttachment(ctx context.Context, noteID, attachmentID string) (*models.Attachment, error) {
	exists, err := s.NoteExists(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNoteNotFound
	}

	var raw string
	err = s.db.QueryRowContext(ctx, `
SELECT je.value FROM notes, json_each(notes.attachments) AS je
WHERE notes.id = ? AND json_extract(je.value, '$.id') = ?
LIMIT 1`, noteID, attachmentID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeAttachment(raw)
}

// FindAttachmentByStorageKey locates the registry entry that references key.
// It returns an empty note id and nil when no note references the key.
func (s *Store) FindAttachmentByStorageKey(ctx context.Context, key string) (string, *models.Attachment, error) {
	var noteID, raw string
	err := s.db.QueryRowContext(ctx, `
SELECT notes.id, je.value FROM notes, json_each(notes.attachments) AS je
WHERE json_extract(je.value, '$.storage_key') = ?
LIMIT 1`, key).Scan(&noteID, &raw)
	if err == sql.ErrNoRows {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	attachment, err := decodeAttachment(raw)
	if err != nil {
		return "", nil, err
	}
	return noteID, attachment, nil
}

// ListReferencedStorageKeys returns every storage key referenced by any registry.
func (s *Store) ListReferencedStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT json_extract(je.value, '$.storage_key') FROM notes, json_each(notes.attachments) AS je`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	for rows.Next() {
		var key sql.NullString
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if key.Valid && key.String != "" {
			keys[key.String] = struct{}{}
		}
	}
	return keys, rows.Err()
}

// requireOneRow turns a no-op registry update into the matching sentinel.
func requireOneRow(ctx context.Context, tx *sql.Tx, res sql.Result, noteID string, onExistingNote error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM notes WHERE id = ?", noteID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNoteNotFound
	}
	if err != nil {
		return err
	}
	return onExistingNote
}

func attachmentsTx(ctx context.Context, tx *sql.Tx, noteID string) ([]models.Attachment, error) {
	var raw string
	if err := tx.QueryRowContext(ctx, "SELECT attachments FROM notes WHERE id = ?", noteID).Scan(&raw); err != nil {
		return nil, err
	}
	return decodeAttachments(raw)
}

func decodeAttachments(raw string) ([]models.Attachment, error) {
	list := []models.Attachment{}
	if strings.TrimSpace(raw) == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func decodeAttachment(raw string) (*models.Attachment, error) {
	attachment := models.Attachment{}
	if err := json.Unmarshal([]byte(raw), &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}
