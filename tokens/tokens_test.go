package tokens_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/tokens"
)

var secret = []byte("test-secret")

func TestGenerateAndParse(t *testing.T) {
	actor := models.ActorIdentity{ID: "u-1", Kind: models.ActorAdmin, DisplayName: "Desk"}
	raw, err := tokens.Generate(secret, actor, time.Hour)
	require.NoError(t, err)

	claims, err := tokens.Parse(secret, raw)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())
}

func TestParseRejects(t *testing.T) {
	actor := models.ActorIdentity{ID: "u-1", Kind: models.ActorUser}

	expired, err := tokens.Generate(secret, actor, -time.Minute)
	require.NoError(t, err)

	other, err := tokens.Generate([]byte("other-secret"), actor, time.Hour)
	require.NoError(t, err)

	noKind, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tokens.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    tokens.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, tokens.Claims{Kind: models.ActorAdmin}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"expired":      expired,
		"wrong secret": other,
		"no kind":      noKind,
		"alg none":     unsigned,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(secret, raw)
			assert.ErrorIs(t, err, chat.ErrAuth)
		})
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	_, err := tokens.Generate(nil, models.ActorIdentity{ID: "u-1", Kind: models.ActorUser}, time.Hour)
	assert.Error(t, err)
}

func TestPeek(t *testing.T) {
	actor := models.ActorIdentity{ID: "op-1", Kind: models.ActorAdmin, DisplayName: "Desk"}
	raw, err := tokens.Generate([]byte("server-only"), actor, time.Hour)
	require.NoError(t, err)

	claims, err := tokens.Peek(raw)
	require.NoError(t, err)
	assert.Equal(t, actor, claims.Actor())

	_, err = tokens.Peek("not.a.token")
	assert.ErrorIs(t, err, chat.ErrAuth)
}
