package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("api: invalid or expired token")

// Claims are the bearer token claims. The subject is the wallet address.
type Claims struct {
	jwt.RegisteredClaims
}

// NewToken mints an HS256 token for wallet valid for ttl.
func NewToken(secret, wallet string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a token and returns the wallet it was issued to.
func ParseToken(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Identity is the authenticated caller.
type Identity struct {
	Wallet  string
	IsAdmin bool
}

type identityKey struct{}

// IdentityFrom returns the caller set by Authenticator.Middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator validates bearer tokens and resolves admin rights.
type Authenticator struct {
	secret  string
	isAdmin func(wallet string) bool
}

// NewAuthenticator creates an authenticator. isAdmin decides operator
// rights for a wallet.
func NewAuthenticator(secret string, isAdmin func(wallet string) bool) *Authenticator {
	return &Authenticator{secret: secret, isAdmin: isAdmin}
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's Identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, "missing authentication token", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		wallet, err := ParseToken(a.secret, parts[1])
		if err != nil {
			writeError(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		id := Identity{Wallet: wallet, IsAdmin: a.isAdmin(wallet)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// RequireAdmin rejects callers without operator rights. It must run after
// Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if !id.IsAdmin {
			writeError(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
