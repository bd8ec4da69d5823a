package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gotrak-digital/gotrak/internal/oauth"
	"github.com/gotrak-digital/gotrak/internal/shared"
)

// Compared against on the miss paths of Authenticate so an unknown email
// costs as much as a wrong password. The compare result is discarded.
var timingDummyHash = []byte("$2a$10$4Xl0eQm1mXBYX3PqZbOaO.9mMkP1hYwzq5uX0dJ9m5mJ3FQ9V9QyW")

const maxUsernameAttempts = 50

// Service wraps the credential and federated identity rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a local account with a bcrypt password hash. The
// plaintext is never stored or logged. Conflicts surface as
// shared.ErrDuplicateEmail or shared.ErrDuplicateUsername.
func (s *Service) Register(ctx context.Context, email, username, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := &User{
		Email:        normalizeEmail(email),
		Username:     strings.TrimSpace(username),
		PasswordHash: string(hash),
	}
	return s.repo.Create(ctx, user)
}

// Authenticate validates email/password credentials. Unknown email, an
// account without a password hash (Google-only) and a wrong password all
// return shared.ErrInvalidCredentials; store faults propagate as-is.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(timingDummyHash, []byte(password))
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(timingDummyHash, []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ResolveGoogle finds or creates the local account for a Google profile.
//
// Lookup order: google_id first (returning users), then email (attaches the
// subject to an account that registered locally with the same address), then
// a fresh row with a derived username and no password hash. Idempotent: a
// second call with the same profile always hits the first lookup. Losing a
// concurrent create observes the winner's row instead of failing.
func (s *Service) ResolveGoogle(ctx context.Context, profile *oauth.Profile) (*User, error) {
	if profile == nil || profile.Subject == "" || profile.Email == "" {
		return nil, shared.ErrFederatedLookup
	}
	email := normalizeEmail(profile.Email)

	user, err := s.repo.FindByGoogleID(ctx, profile.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	user, err = s.repo.FindByEmail(ctx, email)
	if err == nil {
		return s.attachSubject(ctx, user, profile.Subject)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	base := deriveUsername(profile.Name, email)
	username := base
	for attempt := 2; attempt <= maxUsernameAttempts; attempt++ {
		created, err := s.repo.Create(ctx, &User{
			Email:    email,
			Username: username,
			GoogleID: profile.Subject,
		})
		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, shared.ErrDuplicateUsername):
			username = fmt.Sprintf("%s%d", base, attempt)
		case errors.Is(err, shared.ErrDuplicateEmail), errors.Is(err, shared.ErrDuplicateKey):
			return s.resolveRaced(ctx, email, profile.Subject)
		default:
			return nil, err
		}
	}
	return nil, shared.ErrDuplicateUsername
}

// attachSubject records the provider subject on an existing account. A
// duplicate-key failure means a concurrent request attached it first.
func (s *Service) attachSubject(ctx context.Context, user *User, subject string) (*User, error) {
	if err := s.repo.AttachGoogleID(ctx, user.ID, subject); err != nil {
		if errors.Is(err, shared.ErrDuplicateKey) {
			return s.repo.FindByGoogleID(ctx, subject)
		}
		return nil, err
	}
	user.GoogleID = subject
	return user, nil
}

// resolveRaced re-runs the lookup chain after a lost create race.
func (s *Service) resolveRaced(ctx context.Context, email, subject string) (*User, error) {
	if user, err := s.repo.FindByGoogleID(ctx, subject); err == nil {
		return user, nil
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.attachSubject(ctx, user, subject)
}

// CurrentUser resolves the session binding back to a live user record. An
// anonymous session or a binding that no longer resolves yields nil without
// error; the decision is re-evaluated on every call, never cached.
func (s *Service) CurrentUser(ctx context.Context, sess *shared.Session) (*User, error) {
	if sess == nil || sess.UserID() == 0 {
		return nil, nil
	}
	user, err := s.repo.FindByID(ctx, sess.UserID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// RegisterSession persists the login session record in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateLoginSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a login session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteLoginSession(ctx, id)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
