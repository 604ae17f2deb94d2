package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/engine/auth"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	svc := auth.Service{Secret: "s3cret", Now: func() time.Time { return now }}

	token, err := svc.Issue("dana", time.Hour, "read")
	require.NoError(t, err)
	p, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "dana", p.ActorID)
	assert.Equal(t, []string{"read"}, p.Scopes)
	assert.Equal(t, "jwt", p.Source)

	later := auth.Service{Secret: "s3cret", Now: func() time.Time { return now.Add(2 * time.Hour) }}
	_, err = later.Verify(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	other := auth.Service{Secret: "other", Now: svc.Now}
	_, err = other.Verify(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssueRequiresSecretAndSubject(t *testing.T) {
	_, err := auth.Service{}.Issue("dana", 0)
	require.ErrorIs(t, err, auth.ErrNoSecret)
	_, err = auth.Service{Secret: "x"}.Issue(" ", 0)
	require.ErrorIs(t, err, auth.ErrNoSubject)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "dana", Issuer: auth.Issuer}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = auth.Service{Secret: "s3cret"}.Verify(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := auth.BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	_, ok = auth.BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = auth.BearerToken("bearer")
	assert.False(t, ok)
}
