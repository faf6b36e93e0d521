package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Notes backing the attachment registries.
	mux.HandleFunc("POST /v1/notes", s.handleCreateNote)
	mux.HandleFunc("GET /v1/notes/{id}", s.handleGetNote)

	// Note attachments.
	mux.HandleFunc("GET /v1/notes/{id}/attachments", s.handleListNoteAttachments)
	mux.HandleFunc("POST /v1/notes/{id}/attachments", s.handleUploadNoteAttachments)
	mux.HandleFunc("DELETE /v1/notes/{id}/attachments/{attachment_id}", s.handleDeleteNoteAttachment)

	// Blob content by storage key. GET also serves HEAD.
	mux.HandleFunc("PUT /v1/attachments", s.handleUploadAttachment)
	mux.HandleFunc("GET /v1/attachments/{key}", s.handleGetAttachmentContent)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc-blobs", s.handleAdminGCBlobs)

	return mux
}
