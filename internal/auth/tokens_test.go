package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/examhall/internal/rbac"
)

func TestIssueAndParsePair(t *testing.T) {
	svc := NewService("test-secret", 15*time.Minute, 7*24*time.Hour)

	pair, err := svc.IssuePair("user-1", rbac.RoleInstructor)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	p, err := svc.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, rbac.RoleInstructor, p.Role)

	p, err = svc.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
}

func TestTokenTypeIsEnforced(t *testing.T) {
	svc := NewService("test-secret", 15*time.Minute, 7*24*time.Hour)
	pair, err := svc.IssuePair("user-1", rbac.RoleCandidate)
	require.NoError(t, err)

	_, err = svc.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
	_, err = svc.ParseRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenUse)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewService("test-secret", -time.Minute, -time.Minute)
	pair, err := svc.IssuePair("user-1", rbac.RoleCandidate)
	require.NoError(t, err)

	_, err = svc.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	svc := NewService("secret-a", time.Minute, time.Minute)
	other := NewService("secret-b", time.Minute, time.Minute)

	tok, err := svc.IssueAccess("user-1", rbac.RoleAdmin)
	require.NoError(t, err)
	_, err = other.ParseAccess(tok)
	assert.Error(t, err)
}

func TestUnknownRoleRejected(t *testing.T) {
	svc := NewService("test-secret", time.Minute, time.Minute)
	tok, err := svc.issue("user-1", rbac.Role("superuser"), TokenAccess, time.Minute)
	require.NoError(t, err)
	_, err = svc.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
