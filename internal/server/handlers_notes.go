package server

import (
	"net/http"

	"jotter/internal/api"
)

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req api.NoteCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	note, err := s.noteService.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	note, err := s.noteService.Get(r.Context(), noteID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, note)
}
