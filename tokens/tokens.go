// Package tokens mints and verifies the bearer credentials that identify an actor.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linesmerrill/advisory-chat-api/chat"
	"github.com/linesmerrill/advisory-chat-api/models"
)

// Issuer is stamped into every token minted here
const Issuer = "advisory-chat"

// Claims carries the actor behind a token. The subject is the actor id.
type Claims struct {
	Kind        models.ActorKind `json:"kind"`
	DisplayName string           `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the identity the claims describe
func (c Claims) Actor() models.ActorIdentity {
	return models.ActorIdentity{ID: c.Subject, Kind: c.Kind, DisplayName: c.DisplayName}
}

// Generate signs a token for actor that expires after ttl
func Generate(secret []byte, actor models.ActorIdentity, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := Claims{
		Kind:        actor.Kind,
		DisplayName: actor.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies raw and returns its claims. Every failure is an AUTH_ERROR.
func Parse(secret []byte, raw string) (*Claims, error) {
	const op = "parseToken"
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, chat.Wrap(chat.KindAuth, op, err)
	}
	if !token.Valid {
		return nil, chat.E(chat.KindAuth, op, "invalid token")
	}
	if claims.Subject == "" {
		return nil, chat.E(chat.KindAuth, op, "token has no subject")
	}
	if claims.Kind != models.ActorUser && claims.Kind != models.ActorAdmin {
		return nil, chat.E(chat.KindAuth, op, "token has unknown actor kind")
	}
	return claims, nil
}

// Peek decodes raw without checking its signature. A client uses it to learn
// its own identity; anything that grants access must use Parse.
func Peek(raw string) (*Claims, error) {
	const op = "peekToken"
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, chat.Wrap(chat.KindAuth, op, err)
	}
	if claims.Subject == "" {
		return nil, chat.E(chat.KindAuth, op, "token has no subject")
	}
	return claims, nil
}
