package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/types"
)

// KSBGroup is the KSBs of one category with the user's progress against each
type KSBGroup struct {
	Category types.Category   `json:"category"`
	Label    string           `json:"label"`
	KSBs     []db.KSBProgress `json:"ksbs"`
}

// KSBDetailResponse is a KSB with the activities evidencing it
type KSBDetailResponse struct {
	KSB        *types.KSB    `json:"ksb"`
	Activities []db.Activity `json:"activities"`
	TotalHours float64       `json:"total_hours"`
}

// handleListKSBs lists the standard's KSBs grouped by category
func (s *Server) handleListKSBs(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireSpec(w, r)
	if !ok {
		return
	}

	coverage, err := s.db.KSBCoverage(r.Context(), user.ID, user.Spec())
	if err != nil {
		s.handleError(w, err)
		return
	}

	groups := make([]KSBGroup, 0, len(types.Categories))
	for _, cat := range types.Categories {
		group := KSBGroup{Category: cat, Label: cat.Label(), KSBs: []db.KSBProgress{}}
		for _, k := range coverage {
			if k.Category == cat {
				group.KSBs = append(group.KSBs, k)
			}
		}
		groups = append(groups, group)
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"spec_code": user.Spec(),
		"groups":    groups,
	})
}

// handleGetKSB returns one KSB of the selected standard and the user's activities against it
func (s *Server) handleGetKSB(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireSpec(w, r)
	if !ok {
		return
	}

	id := types.KSBID{Spec: user.Spec(), Code: strings.ToUpper(r.PathValue("code"))}
	ksb, err := s.db.GetKSB(r.Context(), id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if ksb == nil {
		s.handleError(w, &ErrNotFound{Resource: "KSB", ID: id})
		return
	}

	activities, err := s.db.KSBActivities(r.Context(), user.ID, id)
	if err != nil {
		s.handleError(w, err)
		return
	}

	resp := KSBDetailResponse{KSB: ksb, Activities: activities}
	for _, a := range activities {
		resp.TotalHours += a.DurationHours
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
