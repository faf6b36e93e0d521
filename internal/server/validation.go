package server

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxFilenameLength = 255

var (
	noteIDRegex       = regexp.MustCompile(`^nt-[0-9a-z]{6}$`)
	attachmentIDRegex = regexp.MustCompile(`^at-[0-9a-z]{6}$`)
)

func validateNoteID(id string) bool {
	return noteIDRegex.MatchString(id)
}

func validateAttachmentID(id string) bool {
	return attachmentIDRegex.MatchString(id)
}

// sanitizeFilename reduces a client-supplied name to a display-safe base name.
// The result is never used to address storage.
func sanitizeFilename(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", badRequestCode(fmt.Errorf("filename must be valid utf-8"), ErrCodeInvalidFilename)
	}
	name := strings.ReplaceAll(raw, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", badRequestCode(fmt.Errorf("filename is required"), ErrCodeInvalidFilename)
	}
	if len(name) > maxFilenameLength {
		return "", badRequestCode(fmt.Errorf("filename must be at most %d bytes", maxFilenameLength), ErrCodeInvalidFilename)
	}
	return name, nil
}

// filenameExtension returns the lower-cased extension used to suffix storage keys.
func filenameExtension(name string) string {
	return strings.ToLower(path.Ext(name))
}
