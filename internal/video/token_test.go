package video

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	AccountSID:   "AC123",
	APIKeySID:    "SK456",
	APIKeySecret: "secret",
}

func TestIssue(t *testing.T) {
	issuer := NewTokenIssuer(testCreds, 0)
	fixed := time.Now().Truncate(time.Second)
	issuer.now = func() time.Time { return fixed }

	signed, err := issuer.Issue("Malee", "apt-1")
	require.NoError(t, err)

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "HS256", token.Header["alg"])
	assert.Equal(t, "twilio-fpa;v=1", token.Header["cty"])
	assert.Equal(t, "SK456", claims.Issuer)
	assert.Equal(t, "AC123", claims.Subject)
	assert.Equal(t, "SK456-"+strconv.FormatInt(fixed.Unix(), 10), claims.ID)
	assert.Equal(t, fixed.Add(4*time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, "Malee", claims.Grants.Identity)
	assert.Equal(t, "apt-1", claims.Grants.Video.Room)
}

func TestIssueCustomTTL(t *testing.T) {
	issuer := NewTokenIssuer(testCreds, time.Hour)
	fixed := time.Now().Truncate(time.Second)
	issuer.now = func() time.Time { return fixed }

	signed, err := issuer.Issue("Somchai", "apt-2")
	require.NoError(t, err)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestIssueErrors(t *testing.T) {
	issuer := NewTokenIssuer(testCreds, 0)

	_, err := issuer.Issue("", "apt-1")
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = issuer.Issue("Malee", "")
	assert.ErrorIs(t, err, ErrMissingField)

	unconfigured := NewTokenIssuer(Credentials{AccountSID: "AC123"}, 0)
	_, err = unconfigured.Issue("Malee", "apt-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
