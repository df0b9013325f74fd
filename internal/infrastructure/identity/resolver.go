// Package identity resolves the acting user from request credentials.
// The engine itself does not manage accounts; it trusts tokens minted by
// the platform's auth service and extracts the user ID from them.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token fails signature or claim
	// validation.
	ErrInvalidToken = errors.New("identity: invalid token")

	// ErrExpiredToken is returned when a token is past its expiry.
	ErrExpiredToken = errors.New("identity: token expired")
)

// Identity is the resolved caller.
type Identity struct {
	// UserID is the platform user ID. Empty for guests.
	UserID string

	// Guest reports whether the request carried no credentials. Guests can
	// submit answers and get graded, but nothing is persisted for them.
	Guest bool
}

// GuestIdentity is the identity of an unauthenticated caller.
var GuestIdentity = Identity{Guest: true}

// Claims are the token claims the engine cares about.
type Claims struct {
	jwt.RegisteredClaims
}

// Resolver validates bearer tokens and extracts the caller's identity.
type Resolver struct {
	secret []byte
	issuer string
}

// NewResolver creates a Resolver. The issuer is optional; when set, tokens
// from other issuers are rejected.
func NewResolver(secret []byte, issuer string) *Resolver {
	return &Resolver{secret: secret, issuer: issuer}
}

// Resolve turns an Authorization header value into an Identity. An absent
// header resolves to the guest identity; a present but invalid token is an
// error, never silently downgraded to guest.
func (r *Resolver) Resolve(authorization string) (Identity, error) {
	if authorization == "" {
		return GuestIdentity, nil
	}

	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return Identity{}, fmt.Errorf("%w: authorization header is not a bearer token", ErrInvalidToken)
	}
	return r.ResolveToken(strings.TrimSpace(token))
}

// ResolveToken validates a raw JWT and extracts the user ID from its
// subject claim.
func (r *Resolver) ResolveToken(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Identity{UserID: claims.Subject}, nil
}

// Mint issues a token for a user. Used by tests and local tooling; the
// production platform mints its own.
func (r *Resolver) Mint(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
