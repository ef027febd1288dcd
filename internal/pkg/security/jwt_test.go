package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "11111111-1111-1111-1111-111111111111", "Ana Pérez")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, uint64(42), claims.DoctorID)
	require.Equal(t, "11111111-1111-1111-1111-111111111111", claims.ExternalID)
	require.Equal(t, "Ana Pérez", claims.Name)

	sig, err := ExtractSignature(token)
	require.NoError(t, err)
	require.NotEmpty(t, sig)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken(7, "", "")
	require.NoError(t, err)

	_, err = ValidateToken(token + "x")
	require.Error(t, err)

	_, err = ValidateToken("not.a.token")
	require.Error(t, err)
}
