package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/jonathan/otj-helper/internal/catalog"
	"github.com/jonathan/otj-helper/internal/config"
	"github.com/jonathan/otj-helper/internal/db"
	"github.com/jonathan/otj-helper/internal/events"
	"github.com/jonathan/otj-helper/internal/gaps"
	"github.com/jonathan/otj-helper/internal/observability"
	"github.com/jonathan/otj-helper/internal/server/middleware"
	"github.com/jonathan/otj-helper/internal/server/ratelimit"
	"github.com/jonathan/otj-helper/internal/storage"
)

// Version is reported by the health check.
const Version = "0.1.0"

// googleUserInfoURL is Google's OpenID Connect userinfo endpoint.
const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// keepaliveInterval is how often an idle event stream receives a comment line.
const keepaliveInterval = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	db          *db.DB
	catalog     *catalog.Catalog
	cfg         *config.Config
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	oauth       *oauth2.Config
	userInfoURL string
	broker      *events.Broker
	files       *storage.Local
	analyser    *gaps.Analyser
	now         func() time.Time
	closing     chan struct{}
	keepalive   time.Duration
}

// Deps are the collaborators a Server is built from. The caller owns them and
// closes the database after the server stops.
type Deps struct {
	DB      *db.DB
	Catalog *catalog.Catalog
	Broker  *events.Broker
	Files   *storage.Local
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps) (*Server, error) {
	sessionConfig, err := cfg.Session()
	if err != nil {
		return nil, fmt.Errorf("failed to create session config: %w", err)
	}

	s := &Server{
		db:          deps.DB,
		catalog:     deps.Catalog,
		cfg:         cfg,
		broker:      deps.Broker,
		files:       deps.Files,
		userInfoURL: googleUserInfoURL,
		now:         time.Now,
		closing:     make(chan struct{}),
		keepalive:   keepaliveInterval,
	}

	// Initialize rate limiter
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	// Initialize authentication services
	s.jwtService = NewJWTService(sessionConfig, cfg.RailwayEnvironment != "")
	s.userService = NewUserService(deps.DB, cfg.EmailAllowed)
	if cfg.OAuthEnabled() {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		}
	}

	s.analyser = gaps.NewAnalyser(deps.DB,
		gaps.WithClock(func() time.Time { return s.now() }),
		gaps.WithObserver(observability.RecordGapAnalysis),
	)

	// Setup router
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())

	// Landing and standard selection
	mux.HandleFunc("GET /{$}", s.handleLanding)
	mux.Handle("GET /select-spec", s.authed(s.handleSelectSpec))

	// Authentication
	mux.HandleFunc("GET /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/google", s.handleGoogleLogin)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("GET /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/denied", s.handleDenied)

	// Progress views
	mux.Handle("GET /dashboard", s.authed(s.handleDashboard))
	mux.Handle("GET /recommendations", s.authed(s.handleRecommendations))
	mux.Handle("PUT /profile/targets", s.authed(s.handleUpdateTargets))

	// Activities
	mux.Handle("GET /activities", s.authed(s.handleListActivities))
	mux.Handle("POST /activities", s.authed(s.handleCreateActivity))
	mux.Handle("GET /activities/export.csv", s.authed(s.handleExportActivities))
	mux.Handle("GET /activities/{id}", s.authed(s.handleGetActivity))
	mux.Handle("PUT /activities/{id}", s.authed(s.handleUpdateActivity))
	mux.Handle("DELETE /activities/{id}", s.authed(s.handleDeleteActivity))

	// KSB reference
	mux.Handle("GET /ksbs", s.authed(s.handleListKSBs))
	mux.Handle("GET /ksbs/{code}", s.authed(s.handleGetKSB))

	// Tags
	mux.Handle("GET /tags", s.authed(s.handleListTags))
	mux.Handle("PUT /tags/{id}", s.authed(s.handleRenameTag))
	mux.Handle("DELETE /tags/{id}", s.authed(s.handleDeleteTag))

	// Templates
	mux.Handle("GET /templates", s.authed(s.handleListTemplates))
	mux.Handle("POST /templates", s.authed(s.handleCreateTemplate))
	mux.Handle("GET /templates/{id}", s.authed(s.handleGetTemplate))
	mux.Handle("PUT /templates/{id}", s.authed(s.handleUpdateTemplate))
	mux.Handle("DELETE /templates/{id}", s.authed(s.handleDeleteTemplate))
	mux.Handle("GET /templates/{id}/use", s.authed(s.handleUseTemplate))
	mux.Handle("GET /templates/from-activity/{id}", s.authed(s.handleTemplateFromActivity))

	// Attachments
	mux.Handle("POST /uploads/activity/{id}", s.authed(s.handleUpload))
	mux.Handle("GET /uploads/{id}/file", s.authed(s.handleServeFile))
	mux.Handle("GET /uploads/{id}/thumb", s.authed(s.handleServeThumb))
	mux.Handle("DELETE /uploads/{id}", s.authed(s.handleDeleteAttachment))

	// Live updates
	mux.Handle("GET /events/stream", s.authed(s.handleEventStream))

	s.handler = s.withMetrics(s.withRateLimit(s.withLogging(s.withSession(mux))))

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort("", cfg.Port),
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: event streams stay open indefinitely
	}
	s.httpServer.RegisterOnShutdown(func() { close(s.closing) })

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop rate limiter cleanup goroutine
	s.rateLimiter.Stop()

	log.Println("Server stopped")
	return nil
}

// authed wraps a handler that needs a signed-in user.
func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(h)
}

// withSession attaches the session user to the request and, when development
// auto-login is configured, signs anonymous visitors in as that user.
func (s *Server) withSession(next http.Handler) http.Handler {
	return middleware.Session(s.jwtService.AsTokenValidator())(s.withDevLogin(next))
}

func (s *Server) withDevLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.DevLoginEnabled() || r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := middleware.GetUserID(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.userService.DevLogin(r.Context(), s.cfg.DevAutoLoginEmail)
		if err != nil {
			log.Printf("Dev auto-login failed: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		if err := s.jwtService.SetSessionCookie(w, user.ID); err != nil {
			log.Printf("Dev auto-login failed to issue session: %v", err)
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), user.ID)))
	})
}

// statusRecorder captures the response status for metrics. It forwards Flush
// so event streams keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withMetrics records request counts and latencies
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		observability.RecordHTTPRequest(r.Method, rec.status, time.Since(start))
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract client identifier (IP address)
		clientID := s.extractClientID(r)

		// Check rate limit
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		if !allowed {
			// Set rate limit headers
			s.setRateLimitHeaders(w, info)
			// Return 429 Too Many Requests
			s.rateLimitResponse(w, info)
			return
		}

		// Set rate limit headers for successful requests
		s.setRateLimitHeaders(w, info)
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// handleError maps an error to its status code. Validation failures carry the
// per-field messages; internal errors are logged and not echoed to the client.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)

	var ve *ErrValidation
	if errors.As(err, &ve) {
		s.jsonResponse(w, status, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
		return
	}
	if status == http.StatusInternalServerError {
		log.Printf("Error: %v", err)
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	// Get IP from RemoteAddr (format: "IP:port")
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If parsing fails, use the whole RemoteAddr
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	// Log rate limit hit
	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
