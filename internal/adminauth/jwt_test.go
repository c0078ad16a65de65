package adminauth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWTRoundTrips(t *testing.T) {
	secret := []byte("super-secret")
	token, err := GenerateJWT("acct-123", secret)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	require.Equal(t, "acct-123", claims.AccountID)
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("acct-123", []byte("secret-a"))
	require.NoError(t, err)

	_, err = ValidateJWT(token, []byte("secret-b"))
	require.Error(t, err)
}

func TestCheckPasswordRoundTrips(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NoError(t, CheckPassword(hash, "correct horse battery staple"))
	require.Error(t, CheckPassword(hash, "wrong password"))
}
