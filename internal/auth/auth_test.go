package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signToken issues an HS256 token the way the account service does.
func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func accountClaims(sub string, ttl time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
}

func TestJWTVerify(t *testing.T) {
	j := NewJWT("secret")

	sub, err := j.Verify(signToken(t, "secret", accountClaims("acct-42", time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, "acct-42", sub)
}

func TestJWTRejectsBadTokens(t *testing.T) {
	j := NewJWT("secret")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, accountClaims("acct-42", time.Minute)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret": signToken(t, "other", accountClaims("acct-42", time.Minute)),
		"expired":      signToken(t, "secret", accountClaims("acct-42", -time.Minute)),
		"no subject":   signToken(t, "secret", jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}),
		"alg none":     none,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := j.Verify(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	a := NewAPIKeyAuth([]string{"k1", ""})

	assert.True(t, a.Enabled())
	assert.True(t, a.IsValidKey("k1"))
	assert.False(t, a.IsValidKey(""))

	a.AddKey("k2")
	assert.True(t, a.IsValidKey("k2"))

	a.RemoveKey("k1")
	a.RemoveKey("k2")
	assert.False(t, a.IsValidKey("k1"))
	assert.False(t, a.Enabled())
}
