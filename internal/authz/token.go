package authz

import (
	"crypto/subtle"

	"golang.org/x/crypto/blake2b"
)

// TokenAuthenticator resolves a static bearer token to the uid it stands
// for, per DM_AUTH_BEARER_TOKENS (SPEC_FULL.md §8). Tokens are hashed with
// blake2b before being compared or held, so a leaked log line or core dump
// never carries the raw token.
type TokenAuthenticator struct {
	hashes map[[blake2b.Size256]byte]string
}

// NewTokenAuthenticator builds an authenticator from a uid-to-token map,
// e.g. parsed from "alice:token1,bob:token2".
func NewTokenAuthenticator(tokensByUID map[string]string) *TokenAuthenticator {
	hashes := make(map[[blake2b.Size256]byte]string, len(tokensByUID))

	for uid, token := range tokensByUID {
		hashes[blake2b.Sum256([]byte(token))] = uid
	}

	return &TokenAuthenticator{hashes: hashes}
}

// Authenticate returns the uid bound to token, and whether it matched any
// configured token. Comparison happens over hashes, never the raw token.
func (a *TokenAuthenticator) Authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	sum := blake2b.Sum256([]byte(token))

	for candidate, uid := range a.hashes {
		if subtle.ConstantTimeCompare(candidate[:], sum[:]) == 1 {
			return uid, true
		}
	}

	return "", false
}
