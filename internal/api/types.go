package api

import "jotter/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// NoteCreateRequest is the minimal payload for bootstrapping a note.
type NoteCreateRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// AttachmentListResponse is returned by list and delete endpoints.
type AttachmentListResponse struct {
	NoteID      string              `json:"note_id"`
	Attachments []models.Attachment `json:"attachments"`
}

// BatchUploadError reports one failed file of a multipart batch.
type BatchUploadError struct {
	Filename  string `json:"filename"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// BatchUploadResponse reports every file of a multipart batch. Files that
// succeeded stay registered even when later files fail.
type BatchUploadResponse struct {
	NoteID      string              `json:"note_id"`
	Attachments []models.Attachment `json:"attachments"`
	Errors      []BatchUploadError  `json:"errors,omitempty"`
}

// BlobGCRequest configures an orphan blob sweep.
type BlobGCRequest struct {
	BatchSize int  `json:"batch_size,omitempty"`
	DryRun    bool `json:"dry_run"`
}

// BlobGCResponse summarizes an orphan blob sweep.
type BlobGCResponse struct {
	Backend        string   `json:"backend"`
	CandidateCount int      `json:"candidate_count"`
	DeletedCount   int      `json:"deleted_count"`
	FailedCount    int      `json:"failed_count"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	DryRun         bool     `json:"dry_run"`
	Keys           []string `json:"keys"`
}
