package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	const (
		userCode = "100001"
		secret   = "testsecret"
	)

	tokenString, err := BuildJWTString(userCode, secret)
	require.NoError(t, err)

	gotCode, err := GetUserCode(tokenString, secret)
	require.NoError(t, err)
	require.Equal(t, userCode, gotCode)

	// чужой ключ не проходит
	_, err = GetUserCode(tokenString, "othersecret")
	require.Error(t, err)
}
