package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIssueAPIKey(t *testing.T) {
	u := &User{ID: 1}

	key, err := u.IssueAPIKey()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "ssk_"))

	assert.Equal(t, key[:16], u.APIKeyPrefix)
	assert.NotNil(t, u.APIKeyCreatedAt)
	assert.Nil(t, u.APIKeyLastUsedAt)
	assert.True(t, u.HasActiveAPIKey())
	assert.Equal(t, HashAPIKey(key), u.APIKeyHash)
	assert.Equal(t, HashAPIKey("  "+key+"\n"), u.APIKeyHash)
}

func TestUserRevokeAPIKey(t *testing.T) {
	u := &User{ID: 99}
	_, err := u.IssueAPIKey()
	require.NoError(t, err)

	u.RevokeAPIKey()

	assert.False(t, u.HasActiveAPIKey())
	assert.Equal(t, "", u.APIKeyHash)
	assert.Equal(t, "", u.APIKeyPrefix)
	assert.NotNil(t, u.APIKeyRevokedAt)
}

func TestCreateUser(t *testing.T) {
	u, err := CreateUser("Asha Rao", " Asha@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.Equal(t, ROLE_USER, u.Role)
	assert.True(t, u.IsActive())
	assert.False(t, u.IsAdmin())

	_, err = CreateUser("x", "not-an-email", ROLE_ADMIN)
	assert.Error(t, err)
}
