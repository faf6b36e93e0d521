package store

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idHashLength   = 6
	idMaxAttempts  = 20

	notePrefix       = "nt"
	attachmentPrefix = "at"
)

// GenerateID returns a new prefixed id such as "nt-4k2m9x".
// It retries on collisions using the provided exists function.
func GenerateID(prefix string, exists func(string) (bool, error)) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("id prefix is required")
	}

	for i := 0; i < idMaxAttempts; i++ {
		hash, err := randomBase36(idHashLength)
		if err != nil {
			return "", err
		}
		id := fmt.Sprintf("%s-%s", prefix, hash)
		if exists == nil {
			return id, nil
		}
		ok, err := exists(id)
		if err != nil {
			return "", err
		}
		if !ok {
			return id, nil
		}
	}

	return "", fmt.Errorf("unable to generate unique id")
}

// GenerateNoteID returns a new note id using the nt- prefix.
func GenerateNoteID(exists func(string) (bool, error)) (string, error) {
	return GenerateID(notePrefix, exists)
}

// GenerateAttachmentID returns a new attachment id using the at- prefix.
// Attachment ids only need to be unique within their note.
func GenerateAttachmentID(exists func(string) (bool, error)) (string, error) {
	return GenerateID(attachmentPrefix, exists)
}

// GenerateStorageKey returns a fresh blob key: a time-ordered UUID plus the
// lower-cased extension (".png"), so keys never derive from user filenames.
func GenerateStorageKey(ext string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !validExtension(ext) {
		ext = ""
	}
	return id.String() + ext, nil
}

func validExtension(ext string) bool {
	if ext == "" || len(ext) > 16 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(ext) > 1
}

func randomBase36(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = base36Alphabet[int(b[i])%len(base36Alphabet)]
	}
	return string(out), nil
}
