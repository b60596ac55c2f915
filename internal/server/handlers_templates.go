package server

import (
	"net/http"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/types"
)

// handleListTemplates lists the user's templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	templates, err := s.db.ListTemplates(r.Context(), user.ID)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// handleCreateTemplate stores a new template
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	req, ok := s.decodeTemplate(w, r)
	if !ok {
		return
	}

	tpl, err := s.db.CreateTemplate(r.Context(), user.ID, req)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, tpl)
}

// handleGetTemplate returns one template
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, tpl)
}

// handleUpdateTemplate replaces a template
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "template")
	if !ok {
		return
	}

	req, ok := s.decodeTemplate(w, r)
	if !ok {
		return
	}

	found, err := s.db.UpdateTemplate(r.Context(), user.ID, id, req)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if !found {
		s.handleError(w, &ErrNotFound{Resource: "template", ID: id})
		return
	}

	tpl, err := s.db.GetTemplate(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tpl)
}

// handleDeleteTemplate removes a template
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "template")
	if !ok {
		return
	}

	found, err := s.db.DeleteTemplate(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if !found {
		s.handleError(w, &ErrNotFound{Resource: "template", ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUseTemplate returns an activity pre-fill built from a template, dated today
func (s *Server) handleUseTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := s.loadTemplate(w, r)
	if !ok {
		return
	}

	prefill := types.ActivityRequest{
		Title:           tpl.Title,
		Description:     tpl.Description,
		ActivityDate:    types.NewDate(s.now()).String(),
		ActivityType:    tpl.ActivityType,
		EvidenceQuality: tpl.EvidenceQuality.OrDraft(),
		KSBCodes:        nonNil(tpl.KSBCodes()),
		Tags:            nonNil(tpl.Tags()),
		Resources:       []types.ResourceInput{},
	}
	if tpl.DurationHours != nil {
		prefill.DurationHours = *tpl.DurationHours
	}
	s.jsonResponse(w, http.StatusOK, prefill)
}

// handleTemplateFromActivity returns a template pre-fill copied from an activity
func (s *Server) handleTemplateFromActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "activity")
	if !ok {
		return
	}

	activity, err := s.db.GetActivity(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if activity == nil {
		s.handleError(w, &ErrNotFound{Resource: "activity", ID: id})
		return
	}

	hours := activity.DurationHours
	s.jsonResponse(w, http.StatusOK, types.TemplateRequest{
		Title:           activity.Title,
		Description:     activity.Description,
		ActivityType:    activity.ActivityType,
		DurationHours:   &hours,
		EvidenceQuality: activity.EvidenceQuality.OrDraft(),
		Tags:            activity.TagNames(),
		KSBCodes:        activity.KSBCodes(),
	})
}

// loadTemplate resolves the {id} template of the signed-in user.
func (s *Server) loadTemplate(w http.ResponseWriter, r *http.Request) (*db.Template, bool) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return nil, false
	}
	id, ok := s.pathID(w, r, "id", "template")
	if !ok {
		return nil, false
	}

	tpl, err := s.db.GetTemplate(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return nil, false
	}
	if tpl == nil {
		s.handleError(w, &ErrNotFound{Resource: "template", ID: id})
		return nil, false
	}
	return tpl, true
}

// decodeTemplate reads, normalizes and validates a template body.
func (s *Server) decodeTemplate(w http.ResponseWriter, r *http.Request) (*types.TemplateRequest, bool) {
	var req types.TemplateRequest
	if !s.decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		s.handleError(w, validationError(err))
		return nil, false
	}
	return &req, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
