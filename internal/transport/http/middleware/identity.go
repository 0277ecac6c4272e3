package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/IgorGrieder/minimizurl/internal/constants"
	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/IgorGrieder/minimizurl/pkg/httputils"
	"github.com/golang-jwt/jwt/v5"
)

type ownerKey struct{}

// Claims is the bearer token payload. The subject is the owner ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator returns an Authenticator for secret. An empty issuer
// accepts tokens from any issuer.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Owner parses a raw token into the owner it names.
func (a *Authenticator) Owner(raw string) (links.Owner, error) {
	if len(a.secret) == 0 {
		return links.Guest(), errors.New("token verification is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return links.Guest(), err
	}
	if !token.Valid {
		return links.Guest(), errors.New("invalid token")
	}

	owner := links.NewOwner(claims.Subject)
	if owner.IsGuest() {
		return links.Guest(), errors.New("token has no subject")
	}
	return owner, nil
}

// Identity puts the caller's Owner into the request context. Requests
// without an Authorization header continue as the guest; a malformed or
// invalid bearer token is rejected with 401.
func Identity(auth *Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
				return
			}

			owner, err := auth.Owner(strings.TrimSpace(raw))
			if err != nil {
				httputils.WriteAPIError(w, r, constants.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
		})
	}
}

func WithOwner(ctx context.Context, owner links.Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the authenticated owner, or the guest.
func OwnerFromContext(ctx context.Context) links.Owner {
	if owner, ok := ctx.Value(ownerKey{}).(links.Owner); ok {
		return owner
	}
	return links.Guest()
}
