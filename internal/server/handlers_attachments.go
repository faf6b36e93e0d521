package server

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"jotter/internal/api"
)

const (
	attachmentBatchMinBody   = 100 << 20 // 100 MiB
	attachmentBatchFileSlots = 20
	multipartOverheadBytes   = 1 << 20
	attachmentCacheControl   = "public, max-age=31536000"
)

// batchBodyLimit leaves room for a full batch of files at the per-file cap
// plus part headers.
func batchBodyLimit(perFile int64) int64 {
	if perFile <= 0 {
		return attachmentBatchMinBody
	}
	if perFile > (math.MaxInt64-multipartOverheadBytes)/attachmentBatchFileSlots {
		return math.MaxInt64
	}
	return max(attachmentBatchMinBody, perFile*attachmentBatchFileSlots+multipartOverheadBytes)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	noteID := strings.TrimSpace(query.Get("note"))
	if noteID == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("note is required"), ErrCodeMissingRequired))
		return
	}

	attachment, err := s.attachmentService.Upload(r.Context(), UploadInput{
		NoteID:       noteID,
		Filename:     query.Get("filename"),
		MediaType:    r.Header.Get("Content-Type"),
		DeclaredSize: declaredSize(r),
	}, r.Body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, attachment)
}

func (s *Server) handleUploadNoteAttachments(w http.ResponseWriter, r *http.Request) {
	noteID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, batchBodyLimit(s.attachmentService.MaxUploadBytes()))
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}

	result, err := s.attachmentService.UploadMultipart(r.Context(), noteID, reader)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	switch {
	case len(result.Failures) == 0:
		s.writeJSON(w, http.StatusCreated, batchUploadResponse(noteID, result))
	case len(result.Attachments) > 0:
		s.writeJSON(w, http.StatusMultiStatus, batchUploadResponse(noteID, result))
	default:
		s.writeServiceError(w, r, result.Failures[0].Err)
	}
}

func (s *Server) handleListNoteAttachments(w http.ResponseWriter, r *http.Request) {
	noteID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	attachments, err := s.attachmentService.ListNoteAttachments(r.Context(), noteID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AttachmentListResponse{NoteID: noteID, Attachments: attachments})
}

func (s *Server) handleDeleteNoteAttachment(w http.ResponseWriter, r *http.Request) {
	noteID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	attachments, err := s.attachmentService.DeleteAttachment(r.Context(), noteID, r.PathValue("attachment_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.AttachmentListResponse{NoteID: noteID, Attachments: attachments})
}

func (s *Server) handleGetAttachmentContent(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	withBody := r.Method != http.MethodHead

	content, err := s.attachmentService.OpenContent(r.Context(), key, withBody)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if content.Reader != nil {
		defer content.Reader.Close()
	}

	header := w.Header()
	header.Set("Content-Type", content.ContentType)
	header.Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	header.Set("Cache-Control", attachmentCacheControl)
	header.Set("Content-Disposition", contentDisposition(content.Filename))
	header.Set("X-Content-Type-Options", "nosniff")
	if !content.ModTime.IsZero() {
		header.Set("Last-Modified", content.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if !withBody {
		return
	}

	// Headers are gone; a failed copy can only end the short response.
	if n, err := io.Copy(w, content.Reader); err != nil {
		s.log().Warn("attachment stream aborted",
			"storage_key", key,
			"bytes_sent", n,
			"size_bytes", content.SizeBytes,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

func batchUploadResponse(noteID string, result BatchUploadResult) api.BatchUploadResponse {
	resp := api.BatchUploadResponse{NoteID: noteID, Attachments: result.Attachments}
	for _, failure := range result.Failures {
		status := httpStatusFromError(failure.Err)
		message := failure.Err.Error()
		if status >= 500 {
			message = "internal error"
		}
		resp.Errors = append(resp.Errors, api.BatchUploadError{
			Filename:  failure.Filename,
			Error:     message,
			Code:      errorCode(status, failure.Err),
			ErrorCode: errorNumericCode(status, failure.Err),
		})
	}
	return resp
}

// contentDisposition renders an inline disposition with a quoted display name
// and an RFC 5987 form when the name is not plain ASCII.
func contentDisposition(filename string) string {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
	value := `inline; filename="` + quoted + `"`
	for _, r := range filename {
		if r > 0x7e || r < 0x20 {
			return value + "; filename*=UTF-8''" + rfc5987Escape(filename)
		}
	}
	return value
}

const upperHex = "0123456789ABCDEF"

// rfc5987Escape percent-encodes every byte outside attr-char.
func rfc5987Escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
