package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/events"
	"github.com/jonathan/otj-helper/internal/export"
	"github.com/jonathan/otj-helper/internal/types"
)

// activityEvent is the payload published for activity changes
type activityEvent struct {
	ID    int64  `json:"id"`
	Title string `json:"title,omitempty"`
}

// handleListActivities lists the user's activities with optional ksb, type and tag filters
func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filters := db.ActivityFilters{
		Spec: user.Spec(),
		KSB:  strings.ToUpper(strings.TrimSpace(q.Get("ksb"))),
		Type: types.ActivityType(q.Get("type")),
	}
	if tag := q.Get("tag"); tag != "" {
		id, err := strconv.ParseInt(tag, 10, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid tag filter")
			return
		}
		filters.TagID = id
	}
	if page := q.Get("page"); page != "" {
		if n, err := strconv.Atoi(page); err == nil {
			filters.Page = n
		}
	}

	page, err := s.db.ListActivities(r.Context(), user.ID, filters)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, page)
}

// handleCreateActivity logs a new activity
func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	req, ok := s.decodeActivity(w, r)
	if !ok {
		return
	}

	activity, err := s.db.CreateActivity(r.Context(), user.ID, user.Spec(), req)
	if err != nil {
		s.handleError(w, err)
		return
	}

	log.Printf("User %d logged activity %d (%.2fh %s)", user.ID, activity.ID, activity.DurationHours, activity.ActivityType)
	s.broker.Publish(user.ID, events.ActivityCreated, activityEvent{ID: activity.ID, Title: activity.Title})
	s.jsonResponse(w, http.StatusCreated, activity)
}

// handleGetActivity returns one activity with its links and attachments
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
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
	s.jsonResponse(w, http.StatusOK, activity)
}

// handleUpdateActivity replaces an activity and its links
func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r, "id", "activity")
	if !ok {
		return
	}

	req, ok := s.decodeActivity(w, r)
	if !ok {
		return
	}

	found, err := s.db.UpdateActivity(r.Context(), user.ID, id, user.Spec(), req)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if !found {
		s.handleError(w, &ErrNotFound{Resource: "activity", ID: id})
		return
	}

	activity, err := s.db.GetActivity(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.broker.Publish(user.ID, events.ActivityUpdated, activityEvent{ID: id, Title: req.Title})
	s.jsonResponse(w, http.StatusOK, activity)
}

// handleDeleteActivity removes an activity and its attachment files
func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
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

	if _, err := s.db.DeleteActivity(r.Context(), user.ID, id); err != nil {
		s.handleError(w, err)
		return
	}
	for _, att := range activity.Attachments {
		if err := s.files.Delete(att.StoredName); err != nil {
			log.Printf("Failed to remove attachment file %s: %v", att.StoredName, err)
		}
	}

	s.broker.Publish(user.ID, events.ActivityDeleted, activityEvent{ID: id})
	w.WriteHeader(http.StatusNoContent)
}

// handleExportActivities streams every activity as CSV
func (s *Server) handleExportActivities(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	activities, err := s.db.ListAllActivities(r.Context(), user.ID)
	if err != nil {
		s.handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="otj-activities-%s.csv"`, types.NewDate(s.now())))
	if err := export.WriteActivitiesCSV(w, activities); err != nil {
		log.Printf("CSV export for user %d failed: %v", user.ID, err)
	}
}

// decodeActivity reads, normalizes and validates an activity body.
func (s *Server) decodeActivity(w http.ResponseWriter, r *http.Request) (*types.ActivityRequest, bool) {
	var req types.ActivityRequest
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
