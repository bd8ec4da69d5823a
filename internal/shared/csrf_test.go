package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRFEnsureTokenStable(t *testing.T) {
	manager := NewCSRFManager("csrfsecret")
	sess := &Session{ID: "sess-1"}

	first, err := manager.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := manager.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, first, second, "token is reused for the session lifetime")
}

func TestCSRFVerifyToken(t *testing.T) {
	manager := NewCSRFManager("csrfsecret")
	sess := &Session{ID: "sess-1"}

	token, err := manager.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	assert.NoError(t, manager.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, manager.VerifyToken(context.Background(), sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, manager.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, manager.VerifyToken(context.Background(), nil, token), ErrCSRFTokenMissing)
}

func TestCSRFVerifyWithoutSessionToken(t *testing.T) {
	manager := NewCSRFManager("csrfsecret")
	sess := &Session{ID: "sess-2"}

	err := manager.VerifyToken(context.Background(), sess, "anything")
	assert.ErrorIs(t, err, ErrCSRFTokenMissing)
}
