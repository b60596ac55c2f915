package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/otj-helper/internal/server/middleware"
)

const (
	oauthStateCookie = "otj_oauth_state"
	oauthNextCookie  = "otj_oauth_next"
	oauthCookieTTL   = 10 * time.Minute
)

// LoginResponse describes the sign-in methods available
type LoginResponse struct {
	GoogleEnabled bool   `json:"google_enabled"`
	GoogleURL     string `json:"google_url,omitempty"`
	DevLogin      bool   `json:"dev_login"`
	Error         string `json:"error,omitempty"`
}

// handleLogin lists sign-in options; signed-in users go to the dashboard
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.GetUserID(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	resp := LoginResponse{
		GoogleEnabled: s.oauth != nil,
		DevLogin:      s.cfg.DevLoginEnabled(),
		Error:         r.URL.Query().Get("error"),
	}
	if resp.GoogleEnabled {
		resp.GoogleURL = "/auth/google"
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleGoogleLogin starts the OAuth flow
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		loginError(w, r, "Google OAuth is not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, or use DEV_AUTO_LOGIN_EMAIL for local development.")
		return
	}

	state := uuid.NewString()
	s.setShortCookie(w, oauthStateCookie, state)
	if next := r.URL.Query().Get("next"); safeRedirect(next) {
		s.setShortCookie(w, oauthNextCookie, next)
	}
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback completes the OAuth flow and issues the session cookie
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		loginError(w, r, "Google OAuth is not configured.")
		return
	}

	state, err := r.Cookie(oauthStateCookie)
	s.clearCookie(w, oauthStateCookie)
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		loginError(w, r, "Google sign-in failed: state mismatch. Please try again.")
		return
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		loginError(w, r, "Google sign-in failed: "+msg)
		return
	}

	profile, err := s.fetchGoogleProfile(r)
	if err != nil {
		log.Printf("OAuth callback failed: %v", err)
		loginError(w, r, "Google sign-in failed. Check that the client ID, secret and redirect URI are correct.")
		return
	}

	user, err := s.userService.SignInWithGoogle(r.Context(), profile)
	if err != nil {
		var denied *ErrAccessDenied
		if errors.As(err, &denied) {
			log.Printf("Sign-in denied for %s", denied.Email)
			http.Redirect(w, r, "/auth/denied", http.StatusFound)
			return
		}
		s.handleError(w, err)
		return
	}

	if err := s.jwtService.SetSessionCookie(w, user.ID); err != nil {
		s.handleError(w, err)
		return
	}
	log.Printf("User %d signed in with Google", user.ID)

	target := "/dashboard"
	if next, err := r.Cookie(oauthNextCookie); err == nil && safeRedirect(next.Value) {
		target = next.Value
	}
	s.clearCookie(w, oauthNextCookie)
	http.Redirect(w, r, target, http.StatusFound)
}

// handleLogout clears the session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.jwtService.ClearSessionCookie(w)
	http.Redirect(w, r, middleware.LoginURL, http.StatusFound)
}

// handleDenied reports an email outside the allow list
func (s *Server) handleDenied(w http.ResponseWriter, r *http.Request) {
	s.errorResponse(w, http.StatusForbidden, "This Google account is not allowed to use this application.")
}

// fetchGoogleProfile exchanges the authorization code and reads the userinfo endpoint.
func (s *Server) fetchGoogleProfile(r *http.Request) (*GoogleProfile, error) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, fmt.Errorf("callback has no authorization code")
	}

	token, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	resp, err := s.oauth.Client(r.Context(), token).Get(s.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &profile, nil
}

func (s *Server) setShortCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   int(oauthCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.RailwayEnvironment != "",
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Path: "/auth", MaxAge: -1, HttpOnly: true})
}

func loginError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, middleware.LoginURL+"?error="+url.QueryEscape(msg), http.StatusFound)
}

// safeRedirect accepts only same-site absolute paths.
func safeRedirect(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.Contains(target, "\\")
}
