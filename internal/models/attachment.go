package models

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// FallbackContentType is served for storage keys whose extension is not in the lookup table.
const FallbackContentType = "application/octet-stream"

// DefaultAllowedMediaTypes is the upload allow-list used when none is configured.
var DefaultAllowedMediaTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

var contentTypesByExtension = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Attachment is one entry of a note's attachment registry.
//
// Attachments are immutable: they are created by an upload and destroyed by a
// delete, never updated in place.
type Attachment struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	StorageKey   string    `json:"storage_key"`
	MimeType     string    `json:"mime_type"`
	TypeCategory string    `json:"type_category"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ParseMediaType normalizes a declared MIME type, dropping parameters.
func ParseMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("media type is required")
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("invalid media type: %s", raw)
	}
	return strings.ToLower(parsed), nil
}

// TypeCategory returns the top-level segment of a media type ("image" for "image/png").
func TypeCategory(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	top, _, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}
	return top
}

// ContentTypeForKey maps a storage key to a content type by its extension only.
func ContentTypeForKey(key string) string {
	if contentType, ok := contentTypesByExtension[strings.ToLower(path.Ext(key))]; ok {
		return contentType
	}
	return FallbackContentType
}
