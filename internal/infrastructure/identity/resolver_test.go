package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestResolver_MissingHeaderResolvesToGuest(t *testing.T) {
	r := NewResolver(testSecret, "")

	id, err := r.Resolve("")

	require.NoError(t, err)
	assert.True(t, id.Guest)
	assert.Empty(t, id.UserID)
}

func TestResolver_ValidTokenResolvesUserID(t *testing.T) {
	r := NewResolver(testSecret, "lernhub")

	token, err := r.Mint("user-42", time.Minute)
	require.NoError(t, err)

	id, err := r.Resolve("Bearer " + token)

	require.NoError(t, err)
	assert.False(t, id.Guest)
	assert.Equal(t, "user-42", id.UserID)
}

func TestResolver_ExpiredTokenIsRejected(t *testing.T) {
	r := NewResolver(testSecret, "")

	token, err := r.Mint("user-42", -time.Minute)
	require.NoError(t, err)

	_, err = r.Resolve("Bearer " + token)

	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestResolver_WrongSecretIsRejected(t *testing.T) {
	other := NewResolver([]byte("other-secret"), "")
	token, err := other.Mint("user-42", time.Minute)
	require.NoError(t, err)

	r := NewResolver(testSecret, "")
	_, err = r.Resolve("Bearer " + token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolver_WrongIssuerIsRejected(t *testing.T) {
	minter := NewResolver(testSecret, "someone-else")
	token, err := minter.Mint("user-42", time.Minute)
	require.NoError(t, err)

	r := NewResolver(testSecret, "lernhub")
	_, err = r.Resolve("Bearer " + token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolver_MalformedHeaderIsNotGuest(t *testing.T) {
	r := NewResolver(testSecret, "")

	_, err := r.Resolve("Basic dXNlcjpwYXNz")

	assert.ErrorIs(t, err, ErrInvalidToken, "a bad credential must not downgrade to guest")
}

func TestResolver_TokenWithoutSubjectIsRejected(t *testing.T) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	r := NewResolver(testSecret, "")
	_, err = r.Resolve("Bearer " + token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}
