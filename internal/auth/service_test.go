package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gotrak-digital/gotrak/internal/oauth"
	"github.com/gotrak-digital/gotrak/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockLoginSession struct {
	userID    int64
	expiresAt time.Time
}

type mockRepository struct {
	users         map[int64]*User
	nextID        int64
	loginSessions map[string]mockLoginSession

	// createHook runs before Create applies, simulating a concurrent
	// writer landing between the lookups and the insert.
	createHook func() error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:         make(map[int64]*User),
		nextID:        1,
		loginSessions: make(map[string]mockLoginSession),
	}
}

func (m *mockRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	if user, ok := m.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	for _, user := range m.users {
		if user.GoogleID != "" && user.GoogleID == googleID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) Create(ctx context.Context, user *User) (*User, error) {
	if m.createHook != nil {
		if err := m.createHook(); err != nil {
			return nil, err
		}
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, shared.ErrDuplicateEmail
		}
		if existing.Username == user.Username {
			return nil, shared.ErrDuplicateUsername
		}
		if user.GoogleID != "" && existing.GoogleID == user.GoogleID {
			return nil, shared.ErrDuplicateKey
		}
	}
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	m.users[user.ID] = &copied
	return user, nil
}

func (m *mockRepository) AttachGoogleID(ctx context.Context, userID int64, googleID string) error {
	for _, existing := range m.users {
		if existing.ID != userID && existing.GoogleID == googleID {
			return shared.ErrDuplicateKey
		}
	}
	user, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	user.GoogleID = googleID
	user.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepository) CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	m.loginSessions[id] = mockLoginSession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *mockRepository) DeleteLoginSession(ctx context.Context, id string) error {
	delete(m.loginSessions, id)
	return nil
}

func (m *mockRepository) DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error) {
	var pruned int64
	for id, sess := range m.loginSessions {
		if sess.expiresAt.Before(before) {
			delete(m.loginSessions, id)
			pruned++
		}
	}
	return pruned, nil
}

var _ Repository = (*mockRepository)(nil)

// ============================================================================
// CREDENTIAL VERIFIER
// ============================================================================

func TestRegisterAndAuthenticate(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	registered, err := service.Register(ctx, "Alice@Example.com", "alice", "pw123secret")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", registered.Email, "email should be stored lowercased")
	assert.NotEmpty(t, registered.PasswordHash)
	assert.NotEqual(t, "pw123secret", registered.PasswordHash, "plaintext must never be stored")
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(registered.PasswordHash), []byte("pw123secret")))

	authenticated, err := service.Authenticate(ctx, "alice@example.com", "pw123secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, authenticated.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice@example.com", "alice", "pw123secret")
	require.NoError(t, err)

	_, err = service.Register(ctx, "alice@example.com", "alice2", "otherpassword")
	require.ErrorIs(t, err, shared.ErrDuplicateEmail)
	assert.Len(t, repo.users, 1, "store must retain exactly one row for the email")
}

func TestAuthenticateUniformFailure(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice@example.com", "alice", "pw123secret")
	require.NoError(t, err)

	// Google-only account: no password hash to check against.
	_, err = service.ResolveGoogle(ctx, &oauth.Profile{Subject: "g-9", Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	_, unknownErr := service.Authenticate(ctx, "nobody@example.com", "pw123secret")
	_, wrongErr := service.Authenticate(ctx, "alice@example.com", "wrongpassword")
	_, federatedErr := service.Authenticate(ctx, "bob@example.com", "pw123secret")

	require.ErrorIs(t, unknownErr, shared.ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, shared.ErrInvalidCredentials)
	require.ErrorIs(t, federatedErr, shared.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error(), "the two cases must be indistinguishable")
}

// ============================================================================
// FEDERATED IDENTITY RESOLVER
// ============================================================================

func TestResolveGoogleIdempotent(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	profile := &oauth.Profile{Subject: "g-1", Email: "carol@example.com", Name: "Carol"}

	first, err := service.ResolveGoogle(ctx, profile)
	require.NoError(t, err)
	second, err := service.ResolveGoogle(ctx, profile)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.users, 1, "repeated resolution must create at most one row")
	assert.Empty(t, first.PasswordHash)
	assert.Equal(t, "carol", first.Username)
}

func TestResolveGoogleAttachesToLocalAccount(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	local, err := service.Register(ctx, "alice@example.com", "alice", "pw123secret")
	require.NoError(t, err)

	resolved, err := service.ResolveGoogle(ctx, &oauth.Profile{Subject: "g-1", Email: "alice@example.com", Name: "Alice"})
	require.NoError(t, err)

	assert.Equal(t, local.ID, resolved.ID, "must attach to the existing row, never create a duplicate")
	assert.Equal(t, "g-1", resolved.GoogleID)
	assert.Len(t, repo.users, 1)

	// Local login still works with the original password.
	authenticated, err := service.Authenticate(ctx, "alice@example.com", "pw123secret")
	require.NoError(t, err)
	assert.Equal(t, local.ID, authenticated.ID)
}

func TestResolveGoogleMalformedProfile(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	cases := []*oauth.Profile{
		nil,
		{Subject: "", Email: "x@example.com"},
		{Subject: "g-1", Email: ""},
	}
	for _, profile := range cases {
		_, err := service.ResolveGoogle(ctx, profile)
		require.ErrorIs(t, err, shared.ErrFederatedLookup)
	}
	assert.Empty(t, repo.users, "a malformed profile must not mutate the store")
}

func TestResolveGoogleUsernameCollision(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	_, err := service.Register(ctx, "dave@other.org", "dave", "pw123secret")
	require.NoError(t, err)

	resolved, err := service.ResolveGoogle(ctx, &oauth.Profile{Subject: "g-2", Email: "dave@example.com", Name: "Dave"})
	require.NoError(t, err)
	assert.Equal(t, "dave2", resolved.Username)
}

func TestResolveGoogleLostCreateRace(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	// The winner registers locally between our lookups and the create.
	repo.createHook = func() error {
		repo.users[7] = &User{ID: 7, Email: "eve@example.com", Username: "eve", PasswordHash: "x"}
		repo.createHook = nil
		return shared.ErrDuplicateEmail
	}

	resolved, err := service.ResolveGoogle(ctx, &oauth.Profile{Subject: "g-3", Email: "eve@example.com", Name: "Eve"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), resolved.ID)
	assert.Equal(t, "g-3", repo.users[7].GoogleID)
}

// ============================================================================
// SESSION RESOLUTION
// ============================================================================

func TestCurrentUser(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	user, err := service.Register(ctx, "alice@example.com", "alice", "pw123secret")
	require.NoError(t, err)

	sess := &shared.Session{}
	current, err := service.CurrentUser(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, current, "anonymous session resolves to no user")

	sess.Bind(user.ID, user.Username)
	current, err = service.CurrentUser(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)

	// A binding that no longer resolves behaves like no binding.
	stale := &shared.Session{}
	stale.Bind(9999, "ghost")
	current, err = service.CurrentUser(ctx, stale)
	require.NoError(t, err)
	assert.Nil(t, current)
}

// ============================================================================
// END TO END SCENARIO
// ============================================================================

func TestAliceScenario(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	ctx := context.Background()

	registered, err := service.Register(ctx, "alice@example.com", "alice", "pw123pw123")
	require.NoError(t, err)

	loggedIn, err := service.Authenticate(ctx, "alice@example.com", "pw123pw123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, loggedIn.ID)

	sess := &shared.Session{}
	sess.Bind(loggedIn.ID, loggedIn.Username)
	assert.Equal(t, registered.ID, sess.UserID())

	_, err = service.Authenticate(ctx, "alice@example.com", "wrongpw")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	resolved, err := service.ResolveGoogle(ctx, &oauth.Profile{Subject: "g-1", Email: "alice@example.com", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID, "federated login must reuse the local row")
	assert.Len(t, repo.users, 1)
}

func TestUserCanAuthenticate(t *testing.T) {
	assert.True(t, (&User{PasswordHash: "x"}).CanAuthenticate())
	assert.True(t, (&User{GoogleID: "g"}).CanAuthenticate())
	assert.False(t, (&User{}).CanAuthenticate(), "a row with neither credential is a data-integrity smell")
}
