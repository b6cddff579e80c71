package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestValidateReturnsSubject(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	sub, err := jv.Validate(signHS256(t, jwt.MapClaims{"sub": "64f0c2a1b3d4e5f601020304"}))
	require.NoError(t, err)
	assert.Equal(t, "64f0c2a1b3d4e5f601020304", sub)
}

func TestValidateRejectsWrongSignature(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).
		SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = jv.Validate(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsForeignAlgorithm(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, jwt.MapClaims{"sub": "x"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = jv.Validate(hs384)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRequiresSubject(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	_, err = jv.Validate(signHS256(t, jwt.MapClaims{"aud": "echochat"}))
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidateGarbageToken(t *testing.T) {
	jv, err := NewJWTValidator("", "HS256", testSecret)
	require.NoError(t, err)

	_, err = jv.Validate("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTValidatorConfigErrors(t *testing.T) {
	_, err := NewJWTValidator("", "HS256", "")
	assert.ErrorIs(t, err, ErrUnsupportedAlg)

	_, err = NewJWTValidator("", "none", "")
	assert.ErrorIs(t, err, ErrUnsupportedAlg)

	_, err = NewJWTValidator("/nonexistent/key.pem", "RS256", "")
	assert.Error(t, err)
}
