package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/legitcheck/internal/storage"
)

// TokenResolver maps a bearer token to its owner.
type TokenResolver interface {
	ResolveToken(token string) (storage.APIToken, error)
}

type ownerKey struct{}

// ownerFrom returns the authenticated owner id, or "" for anonymous callers.
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	return strings.TrimSpace(auth[len(prefix):]), true
}

// resolveOwner authenticates r. ok is false when a token was supplied but is
// not valid.
func resolveOwner(tokens TokenResolver, r *http.Request) (owner string, present, ok bool) {
	token, present := bearerToken(r)
	if !present {
		return "", false, true
	}
	tok, err := tokens.ResolveToken(token)
	if err != nil {
		return "", true, false
	}
	return tok.OwnerID, true, true
}

// TokenAuth rejects requests without a valid API token.
func TokenAuth(tokens TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, present, ok := resolveOwner(tokens, r)
			if !present || !ok {
				httpError(w, http.StatusUnauthorized, "authentication_error", "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
		})
	}
}

// OptionalAuth resolves a token when one is sent and lets anonymous requests
// through. An invalid token is still rejected.
func OptionalAuth(tokens TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, present, ok := resolveOwner(tokens, r)
			if !ok {
				httpError(w, http.StatusUnauthorized, "authentication_error", "Unauthorized")
				return
			}
			if present {
				r = r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// storeError maps storage sentinels to responses. It reports false when err
// is not one of them.
func storeError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "Investigation not found")
	case errors.Is(err, storage.ErrRunInProgress):
		httpError(w, http.StatusConflict, "conflict", "Investigation is already being processed")
	case errors.Is(err, storage.ErrAlreadyCompleted):
		httpError(w, http.StatusConflict, "conflict", "Investigation is already completed")
	default:
		return false
	}
	return true
}
