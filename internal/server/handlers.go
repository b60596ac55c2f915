package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/gaps"
	"github.com/jonathan/otj-helper/internal/recurrence"
	"github.com/jonathan/otj-helper/internal/server/middleware"
	"github.com/jonathan/otj-helper/internal/types"
)

// recentActivityLimit is how many activities the dashboard lists.
const recentActivityLimit = 5

// seminarTypes are the activity types counted towards the seminar target.
var seminarTypes = map[types.ActivityType]bool{
	types.ActivityWorkshop:   true,
	types.ActivityConference: true,
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	DB      string `json:"db"`
	Version string `json:"version"`
}

// TargetProgress is one hour target and how far the user is towards it.
type TargetProgress struct {
	Target  float64 `json:"target"`
	Logged  float64 `json:"logged"`
	Percent int     `json:"percent"`
}

// DashboardResponse is the dashboard view model
type DashboardResponse struct {
	User           *db.User                   `json:"user"`
	SpecCode       string                     `json:"spec_code"`
	TotalHours     float64                    `json:"total_hours"`
	HoursByType    []db.TypeHours             `json:"hours_by_type"`
	Recent         []db.Activity              `json:"recent"`
	KSBCoverage    []db.KSBProgress           `json:"ksb_coverage"`
	ActivityCount  int                        `json:"activity_count"`
	ReadinessScore int                        `json:"readiness_score"`
	Targets        map[string]*TargetProgress `json:"targets"`
}

// RecommendationsResponse is the gap report with the labels a client needs to render it
type RecommendationsResponse struct {
	Report        *gaps.Report      `json:"report"`
	ActivityTypes map[string]string `json:"activity_types"`
	Stages        []types.StageInfo `json:"stages"`
}

// handleHealth reports liveness and database connectivity
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", DB: "connected", Version: Version}
	status := http.StatusOK

	if s.db == nil {
		resp.Status, resp.DB = "degraded", "not configured"
		status = http.StatusServiceUnavailable
	} else if err := s.db.Ping(r.Context()); err != nil {
		resp.Status, resp.DB = "error", err.Error()
		status = http.StatusServiceUnavailable
	}

	s.jsonResponse(w, status, resp)
}

// handleLanding sends users with a standard to their dashboard and lists the standards otherwise
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if userID, err := middleware.GetUserID(r); err == nil {
		user, err := s.userService.CurrentUser(r.Context(), userID)
		if err == nil && user.Spec() != "" {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
	}

	specs := s.catalog.Specs()
	summaries := make([]types.Spec, 0, len(specs))
	for _, spec := range specs {
		spec.KSBs = nil
		summaries = append(summaries, spec)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"specs":     summaries,
		"login_url": middleware.LoginURL,
	})
}

// handleSelectSpec stores the chosen standard on the user
func (s *Server) handleSelectSpec(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("spec"))
	if !s.catalog.Has(code) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if err := s.db.SetSelectedSpec(r.Context(), user.ID, code); err != nil {
		s.handleError(w, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// handleDashboard returns hours, coverage and readiness for the selected standard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireSpec(w, r)
	if !ok {
		return
	}
	spec := user.Spec()
	resp := DashboardResponse{User: user, SpecCode: spec}
	weekStart := startOfWeek(types.NewDate(s.now()))
	var weekHours float64
	var report *gaps.Report

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		resp.TotalHours, err = s.db.TotalHours(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		resp.HoursByType, err = s.db.HoursByType(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		resp.Recent, err = s.db.RecentActivities(ctx, user.ID, recentActivityLimit)
		return err
	})
	g.Go(func() (err error) {
		resp.KSBCoverage, err = s.db.KSBCoverage(ctx, user.ID, spec)
		return err
	})
	g.Go(func() (err error) {
		resp.ActivityCount, err = s.db.ActivityCount(ctx, user.ID)
		return err
	})
	g.Go(func() (err error) {
		weekHours, err = s.db.HoursSince(ctx, user.ID, weekStart)
		return err
	})
	g.Go(func() (err error) {
		report, err = s.analyser.Analyse(ctx, user.ID, spec)
		return err
	})
	if err := g.Wait(); err != nil {
		s.handleError(w, fmt.Errorf("failed to load dashboard: %w", err))
		return
	}

	resp.ReadinessScore = report.OverallScore
	resp.Targets = targetProgress(user, resp.TotalHours, seminarHours(resp.HoursByType), weekHours)
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleRecommendations returns the gap analysis for the selected standard
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireSpec(w, r)
	if !ok {
		return
	}

	report, err := s.analyser.Analyse(r.Context(), user.ID, user.Spec())
	if err != nil {
		s.handleError(w, err)
		return
	}

	labels := make(map[string]string, len(types.ActivityTypes))
	for _, t := range types.ActivityTypes {
		labels[string(t)] = t.Label()
	}
	s.jsonResponse(w, http.StatusOK, RecommendationsResponse{
		Report:        report,
		ActivityTypes: labels,
		Stages:        types.WorkflowStages,
	})
}

// handleUpdateTargets replaces the user's hour targets
func (s *Server) handleUpdateTargets(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req types.TargetsRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.handleError(w, validationError(err))
		return
	}
	if err := s.db.UpdateTargets(r.Context(), user.ID, &req); err != nil {
		s.handleError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, req)
}

// currentUser loads the signed-in user, writing an error response on failure.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*db.User, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		middleware.Unauthorized(w)
		return nil, false
	}
	user, err := s.userService.CurrentUser(r.Context(), userID)
	if err != nil {
		if HTTPStatus(err) == http.StatusNotFound {
			middleware.Unauthorized(w)
			return nil, false
		}
		s.handleError(w, err)
		return nil, false
	}
	return user, true
}

// requireSpec is currentUser for views that need a selected standard; users
// without one are sent to the landing page to choose.
func (s *Server) requireSpec(w http.ResponseWriter, r *http.Request) (*db.User, bool) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return nil, false
	}
	if user.Spec() == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, false
	}
	return user, true
}

// decodeJSON reads a JSON request body, answering 400 when it is malformed.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses a numeric path parameter, answering 404 when it is not one.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name, resource string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		s.handleError(w, &ErrNotFound{Resource: resource, ID: raw})
		return 0, false
	}
	return id, true
}

// startOfWeek returns the Monday on or before d.
func startOfWeek(d types.Date) types.Date {
	return d.AddDays(-recurrence.Weekday(d))
}

func seminarHours(byType []db.TypeHours) float64 {
	var total float64
	for _, th := range byType {
		if seminarTypes[th.Type] {
			total += th.Hours
		}
	}
	return total
}

// targetProgress reports each target the user has set. Unset targets are omitted.
func targetProgress(user *db.User, total, seminar, week float64) map[string]*TargetProgress {
	out := map[string]*TargetProgress{}
	add := func(name string, target *float64, logged float64) {
		if target == nil || *target <= 0 {
			return
		}
		pct := int(logged * 100 / *target)
		if pct > 100 {
			pct = 100
		}
		out[name] = &TargetProgress{Target: *target, Logged: logged, Percent: pct}
	}
	add("otj", user.OTJTargetHours, total)
	add("seminar", user.SeminarTargetHours, seminar)
	add("weekly", user.WeeklyTargetHours, week)
	return out
}
