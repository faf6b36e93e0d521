package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"jotter/internal/blobstore"
	"jotter/internal/models"
	"jotter/internal/store"
)

const (
	defaultMaxUploadBytes  = 5 << 20 // 5 MiB
	defaultBlobGCBatchSize = 500
	uploadFieldName        = "media"

	// Blobs younger than this may belong to an upload whose registry append
	// has not committed yet, so GC leaves them alone.
	gcMinBlobAge = 10 * time.Minute

	uploadOutcomeOK          = "ok"
	uploadOutcomeRejected    = "rejected"
	uploadOutcomeTooLarge    = "too_large"
	uploadOutcomeIOFailure   = "io_failure"
	uploadOutcomeRegistryErr = "registry_failure"

	blobOutcomeDeleted = "deleted"
	blobOutcomeMissing = "missing"
	blobOutcomeError   = "error"
)

var errUploadTooLarge = errors.New("upload exceeds size limit")

// AttachmentService orchestrates uploads, retrieval, deletion and blob GC.
//
// Blob I/O and registry mutation are sequenced, never nested: an attachment
// becomes visible only after its blob is durable, and deletion removes the
// registry entry whatever happened to the blob.
type AttachmentService struct {
	notes    store.NoteStore
	registry store.AttachmentRegistry
	blobs    blobstore.BlobStore
	logger   *slog.Logger
	metrics  *Metrics

	allowedMediaTypes map[string]struct{}
	maxUploadBytes    int64
	gcBatchSize       int
	now               func() time.Time
}

// UploadInput describes one incoming file. DeclaredSize is -1 when unknown.
type UploadInput struct {
	NoteID       string
	Filename     string
	MediaType    string
	DeclaredSize int64
}

// BatchFailure reports one rejected file of a batch upload.
type BatchFailure struct {
	Filename string
	Err      error
}

// BatchUploadResult holds the independent outcomes of a batch upload.
type BatchUploadResult struct {
	Attachments []models.Attachment
	Failures    []BatchFailure
}

// AttachmentContent describes a blob ready to be served.
type AttachmentContent struct {
	Reader      io.ReadCloser
	SizeBytes   int64
	ContentType string
	Filename    string
	ModTime     time.Time
}

// BlobGCResult reports one GC run result.
type BlobGCResult struct {
	Backend        string
	CandidateCount int
	DeletedCount   int
	FailedCount    int
	ReclaimedBytes int64
	DryRun         bool
	Keys           []string
}

// NewAttachmentService constructs an AttachmentService with default policy.
func NewAttachmentService(notes store.NoteStore, registry store.AttachmentRegistry, blobs blobstore.BlobStore, logger *slog.Logger, metrics *Metrics) *AttachmentService {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &AttachmentService{
		notes:    notes,
		registry: registry,
		blobs:    blobs,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
	svc.ConfigurePolicy(nil, 0, 0)
	return svc
}

// ConfigurePolicy overrides the media allow-list, size cap and GC batch size.
// Empty or non-positive values select the defaults.
func (s *AttachmentService) ConfigurePolicy(allowedMediaTypes []string, maxUploadBytes int64, gcBatchSize int) {
	if s == nil {
		return
	}
	normalized := map[string]struct{}{}
	for _, raw := range allowedMediaTypes {
		mediaType, err := models.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized[mediaType] = struct{}{}
	}
	if len(normalized) == 0 {
		for _, mediaType := range models.DefaultAllowedMediaTypes {
			normalized[mediaType] = struct{}{}
		}
	}
	s.allowedMediaTypes = normalized

	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s.maxUploadBytes = maxUploadBytes
	if gcBatchSize <= 0 {
		gcBatchSize = defaultBlobGCBatchSize
	}
	s.gcBatchSize = gcBatchSize
}

// MaxUploadBytes reports the configured per-file cap.
func (s *AttachmentService) MaxUploadBytes() int64 {
	if s == nil {
		return defaultMaxUploadBytes
	}
	return s.maxUploadBytes
}

// Backend names the configured blob backend.
func (s *AttachmentService) Backend() string {
	if s == nil || s.blobs == nil {
		return ""
	}
	return s.blobs.Backend()
}

// Upload validates one file, writes its blob and registers it on the note.
// If the registry append fails the blob is deleted again (best effort).
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput, content io.Reader) (models.Attachment, error) {
	var zero models.Attachment
	if err := s.ready(); err != nil {
		return zero, err
	}

	noteID := strings.TrimSpace(in.NoteID)
	if !validateNoteID(noteID) {
		return zero, badRequestCode(fmt.Errorf("invalid note id"), ErrCodeInvalidID)
	}
	filename, err := sanitizeFilename(in.Filename)
	if err != nil {
		s.metrics.observeUpload(uploadOutcomeRejected, 0)
		return zero, err
	}
	mediaType, err := s.validateMediaType(in.MediaType)
	if err != nil {
		s.metrics.observeUpload(uploadOutcomeRejected, 0)
		return zero, err
	}
	if in.DeclaredSize > s.maxUploadBytes {
		s.metrics.observeUpload(uploadOutcomeTooLarge, 0)
		return zero, payloadTooLarge(fmt.Errorf("file exceeds the %d byte limit", s.maxUploadBytes))
	}
	if content == nil {
		return zero, badRequestCode(fmt.Errorf("content is required"), ErrCodeMissingRequired)
	}
	if err := s.ensureNoteExists(ctx, noteID); err != nil {
		return zero, err
	}

	id, err := s.nextAttachmentID(ctx, noteID)
	if err != nil {
		return zero, storeFailure(err)
	}
	key, err := store.GenerateStorageKey(filenameExtension(filename))
	if err != nil {
		return zero, internalError(err)
	}

	log := s.log(ctx).With("note_id", noteID, "attachment_id", id, "storage_key", key)
	log.Debug("upload started", "filename", filename, "media_type", mediaType, "declared_size", in.DeclaredSize)

	size, err := s.blobs.Put(ctx, key, &limitedReader{r: content, remaining: s.maxUploadBytes})
	if err != nil {
		return zero, s.classifyPutError(log, err)
	}

	attachment := models.Attachment{
		ID:           id,
		Filename:     filename,
		StorageKey:   key,
		MimeType:     mediaType,
		TypeCategory: models.TypeCategory(mediaType),
		SizeBytes:    size,
		UploadedAt:   s.now().UTC(),
	}
	// The append runs even when the client has gone away, so a durable blob
	// is either registered or compensated.
	if _, err := s.registry.AppendAttachment(context.WithoutCancel(ctx), noteID, attachment); err != nil {
		s.metrics.observeUpload(uploadOutcomeRegistryErr, 0)
		log.Error("registry append failed after blob write", "error", err)
		s.deleteOrphan(ctx, log, key)
		return zero, registryError(err)
	}

	s.metrics.observeUpload(uploadOutcomeOK, size)
	log.Info("attachment uploaded", "size_bytes", size, "media_type", mediaType)
	return attachment, nil
}

// UploadMultipart ingests every "media" part of a multipart body as an
// independent upload. Earlier successes are kept when a later part fails.
func (s *AttachmentService) UploadMultipart(ctx context.Context, noteID string, reader *multipart.Reader) (BatchUploadResult, error) {
	result := BatchUploadResult{Attachments: []models.Attachment{}}
	if err := s.ready(); err != nil {
		return result, err
	}
	noteID = strings.TrimSpace(noteID)
	if !validateNoteID(noteID) {
		return result, badRequestCode(fmt.Errorf("invalid note id"), ErrCodeInvalidID)
	}
	if err := s.ensureNoteExists(ctx, noteID); err != nil {
		return result, err
	}

	files := 0
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{Err: classifyMultipartError(err)})
			break
		}
		if part.FormName() != uploadFieldName || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		files++

		attachment, err := s.Upload(ctx, UploadInput{
			NoteID:       noteID,
			Filename:     part.FileName(),
			MediaType:    part.Header.Get("Content-Type"),
			DeclaredSize: -1,
		}, part)
		_ = part.Close()
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{Filename: part.FileName(), Err: err})
			if ctx.Err() != nil {
				break
			}
			continue
		}
		result.Attachments = append(result.Attachments, attachment)
	}

	if files == 0 && len(result.Failures) == 0 {
		return result, badRequestCode(fmt.Errorf("at least one %q file part is required", uploadFieldName), ErrCodeMissingRequired)
	}
	return result, nil
}

// ListNoteAttachments returns a note's registry in insertion order.
func (s *AttachmentService) ListNoteAttachments(ctx context.Context, noteID string) ([]models.Attachment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	noteID = strings.TrimSpace(noteID)
	if !validateNoteID(noteID) {
		return nil, badRequestCode(fmt.Errorf("invalid note id"), ErrCodeInvalidID)
	}
	list, err := s.registry.ListAttachments(ctx, noteID)
	if err != nil {
		return nil, registryError(err)
	}
	return list, nil
}

// OpenContent resolves a storage key to servable content. With withBody
// false only metadata is returned.
func (s *AttachmentService) OpenContent(ctx context.Context, key string, withBody bool) (*AttachmentContent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	// No upload can produce a key that fails validation.
	if err := blobstore.ValidateKey(key); err != nil {
		return nil, notFoundCode(fmt.Errorf("attachment content not found"), ErrCodeBlobNotFound)
	}

	stat, err := s.blobs.Stat(ctx, key)
	if err != nil {
		return nil, ioFailure(fmt.Errorf("stat blob: %w", err))
	}
	if !stat.Exists {
		return nil, notFoundCode(fmt.Errorf("attachment content not found"), ErrCodeBlobNotFound)
	}

	content := &AttachmentContent{
		SizeBytes:   stat.SizeBytes,
		ContentType: models.ContentTypeForKey(key),
		Filename:    key,
		ModTime:     stat.ModTime,
	}
	if _, attachment, err := s.registry.FindAttachmentByStorageKey(ctx, key); err != nil {
		s.log(ctx).Debug("lookup attachment by storage key", "storage_key", key, "error", err)
	} else if attachment != nil && attachment.Filename != "" {
		content.Filename = attachment.Filename
	}

	if !withBody {
		return content, nil
	}
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, notFoundCode(fmt.Errorf("attachment content not found"), ErrCodeBlobNotFound)
		}
		return nil, ioFailure(fmt.Errorf("open blob: %w", err))
	}
	content.Reader = rc
	return content, nil
}

// DeleteAttachment removes one attachment from a note and reclaims its blob.
// The blob delete is best effort; the registry entry is removed regardless.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, noteID, attachmentID string) ([]models.Attachment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	noteID = strings.TrimSpace(noteID)
	attachmentID = strings.TrimSpace(attachmentID)
	if !validateNoteID(noteID) {
		return nil, badRequestCode(fmt.Errorf("invalid note id"), ErrCodeInvalidID)
	}
	if !validateAttachmentID(attachmentID) {
		return nil, badRequestCode(fmt.Errorf("invalid attachment id"), ErrCodeInvalidID)
	}

	if err := s.ensureNoteExists(ctx, noteID); err != nil {
		return nil, err
	}
	attachment, err := s.registry.GetAttachment(ctx, noteID, attachmentID)
	if err != nil {
		return nil, registryError(err)
	}

	// Once started the deletion completes even if the client disconnects.
	ctx = context.WithoutCancel(ctx)
	log := s.log(ctx).With("note_id", noteID, "attachment_id", attachmentID, "storage_key", attachment.StorageKey)

	outcome := blobOutcomeDeleted
	if stat, err := s.blobs.Stat(ctx, attachment.StorageKey); err == nil && !stat.Exists {
		outcome = blobOutcomeMissing
		log.Warn("attachment blob already missing")
	}
	if err := s.blobs.Delete(ctx, attachment.StorageKey); err != nil {
		outcome = blobOutcomeError
		log.Warn("attachment blob delete failed, removing registry entry anyway", "error", err)
	}

	list, err := s.registry.RemoveAttachment(ctx, noteID, attachmentID)
	if err != nil {
		return nil, registryError(err)
	}
	s.metrics.observeDeletion(outcome)
	log.Info("attachment deleted", "blob", outcome)
	return list, nil
}

// GCBlobs sweeps blobs that no registry references and optionally deletes them.
func (s *AttachmentService) GCBlobs(ctx context.Context, batchSize int, apply bool) (BlobGCResult, error) {
	result := BlobGCResult{DryRun: !apply, Keys: []string{}}
	if err := s.ready(); err != nil {
		return result, err
	}
	result.Backend = s.blobs.Backend()
	if batchSize <= 0 {
		batchSize = s.gcBatchSize
	}

	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return result, ioFailure(fmt.Errorf("list blobs: %w", err))
	}
	referenced, err := s.registry.ListReferencedStorageKeys(ctx)
	if err != nil {
		return result, storeFailure(err)
	}

	cutoff := s.now().Add(-gcMinBlobAge)
	candidates := make([]blobstore.BlobInfo, 0)
	for _, blob := range blobs {
		if _, ok := referenced[blob.Key]; ok {
			continue
		}
		if !blob.ModTime.Before(cutoff) {
			continue
		}
		candidates = append(candidates, blob)
	}
	result.CandidateCount = len(candidates)

	if !apply {
		for _, blob := range candidates {
			result.ReclaimedBytes += blob.SizeBytes
			result.Keys = append(result.Keys, blob.Key)
		}
		return result, nil
	}

	log := s.log(ctx)
	for start := 0; start < len(candidates); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+batchSize, len(candidates))

		// Refresh per batch so a key registered meanwhile is never reclaimed.
		referenced, err = s.registry.ListReferencedStorageKeys(ctx)
		if err != nil {
			return result, storeFailure(err)
		}
		for _, blob := range candidates[start:end] {
			if _, ok := referenced[blob.Key]; ok {
				continue
			}
			if err := s.blobs.Delete(ctx, blob.Key); err != nil {
				result.FailedCount++
				log.Warn("gc delete blob", "storage_key", blob.Key, "error", err)
				continue
			}
			result.DeletedCount++
			result.ReclaimedBytes += blob.SizeBytes
			result.Keys = append(result.Keys, blob.Key)
		}
	}
	s.metrics.observeGCDeleted(result.DeletedCount)
	log.Info("blob gc complete", "deleted", result.DeletedCount, "failed", result.FailedCount, "reclaimed_bytes", result.ReclaimedBytes)
	return result, nil
}

func (s *AttachmentService) ready() error {
	if s == nil || s.notes == nil || s.registry == nil || s.blobs == nil {
		return internalError(fmt.Errorf("attachment service is not configured"))
	}
	return nil
}

func (s *AttachmentService) validateMediaType(raw string) (string, error) {
	mediaType, err := models.ParseMediaType(raw)
	if err != nil {
		return "", unsupportedType(err)
	}
	if _, ok := s.allowedMediaTypes[mediaType]; !ok {
		return "", unsupportedType(fmt.Errorf("media type %s is not allowed", mediaType))
	}
	return mediaType, nil
}

func (s *AttachmentService) ensureNoteExists(ctx context.Context, noteID string) error {
	exists, err := s.notes.NoteExists(ctx, noteID)
	if err != nil {
		return storeFailure(err)
	}
	if !exists {
		return notFoundCode(fmt.Errorf("note not found"), ErrCodeNoteNotFound)
	}
	return nil
}

func (s *AttachmentService) nextAttachmentID(ctx context.Context, noteID string) (string, error) {
	exists := func(id string) (bool, error) {
		_, err := s.registry.GetAttachment(ctx, noteID, id)
		if errors.Is(err, store.ErrAttachmentNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return store.GenerateAttachmentID(exists)
}

func (s *AttachmentService) classifyPutError(log *slog.Logger, err error) error {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, errUploadTooLarge), errors.As(err, &maxBytesErr):
		s.metrics.observeUpload(uploadOutcomeTooLarge, 0)
		log.Info("upload rejected during streaming", "limit_bytes", s.maxUploadBytes)
		return payloadTooLarge(fmt.Errorf("file exceeds the %d byte limit", s.maxUploadBytes))
	case errors.Is(err, context.Canceled):
		s.metrics.observeUpload(uploadOutcomeIOFailure, 0)
		log.Info("upload abandoned by client")
		return ioFailure(fmt.Errorf("upload canceled: %w", err))
	default:
		s.metrics.observeUpload(uploadOutcomeIOFailure, 0)
		log.Error("blob write failed", "error", err)
		return ioFailure(fmt.Errorf("write blob: %w", err))
	}
}

// deleteOrphan is the single compensating action for a failed append.
// Its failure is a logged, bounded leak, never a second error for the caller.
func (s *AttachmentService) deleteOrphan(ctx context.Context, log *slog.Logger, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.metrics.observeOrphanCleanupFailure()
		log.Warn("orphan cleanup failed", "kind", "OrphanCleanupFailure", "error", err)
		return
	}
	log.Info("orphan blob removed after failed registry append")
}

func (s *AttachmentService) log(ctx context.Context) *slog.Logger {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	if id := requestIDFromContext(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}

func registryError(err error) error {
	switch {
	case errors.Is(err, store.ErrNoteNotFound):
		return notFoundCode(fmt.Errorf("note not found"), ErrCodeNoteNotFound)
	case errors.Is(err, store.ErrAttachmentNotFound):
		return notFoundCode(fmt.Errorf("attachment not found"), ErrCodeAttachmentNotFound)
	case errors.Is(err, store.ErrDuplicateAttachment):
		return conflictCode(fmt.Errorf("attachment already exists"), ErrCodeAttachmentExists)
	default:
		return storeFailure(err)
	}
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return payloadTooLarge(fmt.Errorf("request body too large"))
	}
	return badRequestCode(fmt.Errorf("invalid multipart body: %w", err), ErrCodeInvalidArgument)
}

// limitedReader fails the read that would exceed the limit, so oversized
// uploads abort after at most limit+1 bytes instead of being truncated.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errUploadTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return 0, errUploadTooLarge
	}
	return n, err
}
