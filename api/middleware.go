package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/advisory-chat-api/models"
	"github.com/linesmerrill/advisory-chat-api/tokens"
)

const (
	// tokenCacheTTL bounds how long a verified token is trusted without re-parsing it
	tokenCacheTTL = 5 * time.Minute
	// revokedTTL covers the lifetime of tokens minted for this API
	revokedTTL = 24 * time.Hour
)

// errRevoked is returned when a logged-out token is presented again
var errRevoked = errors.New("token has been revoked")

// MiddlewareAuth holds the secret bearer tokens are signed with
type MiddlewareAuth struct {
	Secret []byte
}

var authenticator auth.Authenticator
var cache store.Cache
var revoked store.Cache

// Middleware adds some basic header authentication around accessing the routes.
// The authenticated actor is stored on the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		user, err := authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		actor := actorFromInfo(user)
		zap.S().Debugw("actor authenticated", "actorId", actor.ID, "kind", actor.Kind)
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// SetupGoGuardian sets up the go-guardian middleware
func (m MiddlewareAuth) SetupGoGuardian() {
	authenticator = auth.New()
	cache = store.NewFIFO(context.Background(), tokenCacheTTL)
	revoked = store.NewFIFO(context.Background(), revokedTTL)
	tokenStrategy := bearer.New(m.ValidateToken, cache)

	authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// ValidateToken verifies a bearer token and turns its claims into the authenticated user
func (m MiddlewareAuth) ValidateToken(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
	if _, ok, err := revoked.Load(token, r); ok && err == nil {
		return nil, errRevoked
	}
	claims, err := tokens.Parse(m.Secret, token)
	if err != nil {
		return nil, err
	}
	actor := claims.Actor()
	return auth.NewDefaultUser(actor.DisplayName, actor.ID, []string{string(actor.Kind)}, nil), nil
}

func actorFromInfo(info auth.Info) models.ActorIdentity {
	actor := models.ActorIdentity{ID: info.ID(), DisplayName: info.UserName(), Kind: models.ActorUser}
	for _, g := range info.Groups() {
		if g == string(models.ActorAdmin) {
			actor.Kind = models.ActorAdmin
		}
	}
	return actor
}

// RevokeToken logs a token out. It is remembered as revoked and dropped from the
// cache, so the next request fails validation.
func RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reqToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if reqToken == "" {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "missing bearer token"}`))
		return
	}

	if err := revoked.Store(reqToken, true, r); err != nil {
		zap.S().Errorw("failed to revoke token", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "failed to revoke token"}`))
		return
	}
	tokenStrategy := authenticator.Strategy(bearer.CachedStrategyKey)
	auth.Revoke(tokenStrategy, reqToken, r)
	w.Write([]byte(`{"revoked": true}`))
}

// TokenFromQuery lets websocket clients, which cannot set headers, pass the
// bearer token as ?token=. An Authorization header always wins.
func TokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if t := r.URL.Query().Get("token"); t != "" {
				r.Header.Set("Authorization", "Bearer "+t)
			}
		}
		next.ServeHTTP(w, r)
	})
}
