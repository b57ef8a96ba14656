package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivechat/realtime/pkg/jwt"
)

type accessClaims struct {
	jwt.StandardClaims
	Username string `json:"username"`
}

func TestService_RoundTrip(t *testing.T) {
	t.Parallel()

	service, err := jwt.NewFromString("test-secret-key-at-least-32-bytes!")
	require.NoError(t, err)

	token, err := service.Generate(accessClaims{
		StandardClaims: jwt.StandardClaims{
			ID:        "token-1",
			Subject:   "user123",
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
		Username: "john.doe",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	var parsed accessClaims
	require.NoError(t, service.Parse(token, &parsed))
	assert.Equal(t, "user123", parsed.Subject)
	assert.Equal(t, "token-1", parsed.ID)
	assert.Equal(t, "john.doe", parsed.Username)
}

func TestService_Expired(t *testing.T) {
	t.Parallel()

	service, err := jwt.NewFromString("test-secret-key-at-least-32-bytes!")
	require.NoError(t, err)

	token, err := service.Generate(jwt.StandardClaims{
		Subject:   "user123",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	var parsed jwt.StandardClaims
	err = service.Parse(token, &parsed)
	require.ErrorIs(t, err, jwt.ErrExpiredToken)
}

func TestService_WrongKey(t *testing.T) {
	t.Parallel()

	signer, err := jwt.NewFromString("signing-key-number-one-32-bytes!!")
	require.NoError(t, err)
	verifier, err := jwt.NewFromString("signing-key-number-two-32-bytes!!")
	require.NoError(t, err)

	token, err := signer.Generate(jwt.StandardClaims{
		Subject:   "user123",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	var parsed jwt.StandardClaims
	err = verifier.Parse(token, &parsed)
	require.ErrorIs(t, err, jwt.ErrInvalidSignature)
}

func TestService_Malformed(t *testing.T) {
	t.Parallel()

	service, err := jwt.NewFromString("test-secret-key-at-least-32-bytes!")
	require.NoError(t, err)

	var parsed jwt.StandardClaims
	err = service.Parse("not.a.token", &parsed)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestService_Validation(t *testing.T) {
	t.Parallel()

	_, err := jwt.New(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)

	service, err := jwt.NewFromString("test-secret-key-at-least-32-bytes!")
	require.NoError(t, err)

	_, err = service.Generate(nil)
	assert.ErrorIs(t, err, jwt.ErrMissingClaims)
}
