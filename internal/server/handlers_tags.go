package server

import (
	"net/http"

	"github.com/jonathan/otj-helper/internal/types"
)

// handleListTags lists the user's tags with activity counts
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	tags, err := s.db.ListTagsWithCounts(r.Context(), user.ID)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"tags":  tags,
		"count": len(tags),
	})
}

// handleRenameTag renames one of the user's tags
func (s *Server) handleRenameTag(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "tag")
	if !ok {
		return
	}

	var req types.RenameTagRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.handleError(w, validationError(err))
		return
	}

	found, err := s.db.RenameTag(r.Context(), user.ID, id, req.Name)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if !found {
		s.handleError(w, &ErrNotFound{Resource: "tag", ID: id})
		return
	}

	tag, err := s.db.GetTag(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tag)
}

// handleDeleteTag removes a tag from all of the user's activities
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "tag")
	if !ok {
		return
	}

	found, err := s.db.DeleteTag(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if !found {
		s.handleError(w, &ErrNotFound{Resource: "tag", ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
