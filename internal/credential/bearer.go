// Package credential handles the opaque bearer token shared by the bridge and the relay.
package credential

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var (
	ErrMissing   = errors.New("missing authorization header")
	ErrMalformed = errors.New("invalid authorization header format")
	ErrInvalid   = errors.New("invalid token")
)

// Transport returns a round tripper adding the bearer token to every request
func Transport(base http.RoundTripper, token string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if token == "" {
		return base
	}
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &oauth2.Transport{Source: source, Base: base}
}

// Verify checks an Authorization header value against the expected token
func Verify(header string, expected string) error {
	if header == "" {
		return ErrMissing
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return ErrMalformed
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return ErrInvalid
	}
	return nil
}

// Expiry returns the exp claim when the token is a JWT. The signature is not verified.
func Expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	expiry, err := parsed.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}
