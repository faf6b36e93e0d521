package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument      = 1000
	ErrCodeInvalidJSON          = 1001
	ErrCodePayloadTooLarge      = 1002
	ErrCodeInvalidQuery         = 1003
	ErrCodeInvalidID            = 1004
	ErrCodeInvalidFilename      = 1006
	ErrCodeInvalidMediaType     = 1007
	ErrCodeMissingRequired      = 1009
	ErrCodeUnsupportedMediaType = 1015

	// Domain state (2xxx)
	ErrCodeNoteNotFound       = 2001
	ErrCodeAttachmentNotFound = 2003
	ErrCodeBlobNotFound       = 2005
	ErrCodeAttachmentExists   = 2101
	ErrCodeConflict           = 2102

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeIOFailure    = 4006
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeNoteNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodePayloadTooLarge
	case 415:
		return ErrCodeUnsupportedMediaType
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
