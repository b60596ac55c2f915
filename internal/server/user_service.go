package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/otj-helper/internal/db"
)

// UserStore is the subset of the database the UserService needs.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*db.User, error)
	GetOrCreateUser(ctx context.Context, email, name string) (*db.User, error)
	UpsertGoogleUser(ctx context.Context, email, name, sub string) (*db.User, error)
}

// GoogleProfile is the identity returned by Google's userinfo endpoint.
type GoogleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// UserService provides sign-in logic on top of the user store
type UserService struct {
	db      UserStore
	allowed func(email string) bool
}

// NewUserService creates a new UserService. allowed decides which emails may
// sign in; nil allows everyone.
func NewUserService(store UserStore, allowed func(email string) bool) *UserService {
	if allowed == nil {
		allowed = func(string) bool { return true }
	}
	return &UserService{
		db:      store,
		allowed: allowed,
	}
}

// CurrentUser loads the signed-in user. A session for a deleted user yields
// ErrNotFound.
func (s *UserService) CurrentUser(ctx context.Context, userID int64) (*db.User, error) {
	user, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, &ErrNotFound{Resource: "user", ID: userID}
	}
	return user, nil
}

// SignInWithGoogle maps a Google identity to a local account, creating it on
// first sign-in and back-filling google_sub for accounts created another way.
func (s *UserService) SignInWithGoogle(ctx context.Context, profile *GoogleProfile) (*db.User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, &ErrBadRequest{Message: "Google account has no email address"}
	}
	if !s.allowed(email) {
		return nil, &ErrAccessDenied{Email: email}
	}

	name := profile.Name
	if name == "" {
		name = email
	}
	user, err := s.db.UpsertGoogleUser(ctx, email, name, profile.Sub)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in %s: %w", email, err)
	}
	return user, nil
}

// DevLogin returns the development auto-login account, creating it if needed.
func (s *UserService) DevLogin(ctx context.Context, email string) (*db.User, error) {
	user, err := s.db.GetOrCreateUser(ctx, email, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create dev user: %w", err)
	}
	return user, nil
}
