package services

import (
	"testing"
	"time"

	"energenius/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionServiceIssueAndParse(t *testing.T) {
	sessions := NewSessionService("secret", time.Hour)
	user := models.User{ID: "1", Username: "ana", Name: "Ana"}

	token, err := sessions.Issue(user)
	require.NoError(t, err)

	got, err := sessions.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user, *got)
}

func TestSessionServiceRejectsInvalidTokens(t *testing.T) {
	sessions := NewSessionService("secret", time.Hour)
	token, err := sessions.Issue(models.User{Username: "ana"})
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		_, err := NewSessionService("other", time.Hour).Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewSessionService("secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "ana"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = sessions.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := sessions.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}
