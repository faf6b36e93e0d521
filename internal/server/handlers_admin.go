package server

import (
	"fmt"
	"net/http"

	"jotter/internal/api"
)

func (s *Server) handleAdminGCBlobs(w http.ResponseWriter, r *http.Request) {
	req := api.BlobGCRequest{DryRun: true}
	if r.ContentLength != 0 {
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}
	if req.BatchSize < 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("batch_size must be >= 0"), ErrCodeInvalidArgument))
		return
	}

	result, err := s.attachmentService.GCBlobs(r.Context(), req.BatchSize, !req.DryRun)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.BlobGCResponse{
		Backend:        result.Backend,
		CandidateCount: result.CandidateCount,
		DeletedCount:   result.DeletedCount,
		FailedCount:    result.FailedCount,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
		Keys:           result.Keys,
	})
}
